package a

import "errors"

// Mailer stashes the recipient in a field between calls.
type Mailer struct {
	apiKey    string
	recipient string
}

func NewMailer(apiKey string) *Mailer {
	return &Mailer{apiKey: apiKey}
}

func (m *Mailer) SetRecipient(to string) {
	m.recipient = to // want `SetRecipient stores per-call state in field recipient read by Send; pass it as a parameter instead`
}

func (m *Mailer) Send(body string) error {
	if m.recipient == "" {
		return errors.New("no recipient")
	}
	_ = m.apiKey
	return nil
}

// Pusher carries only lifetime-fixed state; per-call state is a parameter.
type Pusher struct {
	endpoint string
}

func NewPusher(endpoint string) *Pusher {
	return &Pusher{endpoint: endpoint}
}

func (p *Pusher) Push(recipient, body string) error {
	if recipient == "" {
		return errors.New("no recipient")
	}
	_ = p.endpoint
	return nil
}

// Counter's setter writes a field no other exported method reads.
type Counter struct {
	label string
	n     int
}

func (c *Counter) SetLabel(l string) {
	c.label = l
}

func (c *Counter) Add(delta int) {
	c.n += delta
}

// cache is driven only through unexported methods.
type cache struct {
	key string
}

func (c *cache) setKey(k string) {
	c.key = k
}

func (c *cache) get() string {
	return c.key
}

// Uploader mutates the shared instance through a With* builder.
type Uploader struct {
	bucket string
	key    string
}

func (u *Uploader) WithKey(k string) *Uploader {
	u.key = k // want `WithKey stores per-call state in field key read by Upload; pass it as a parameter instead`
	return u
}

func (u *Uploader) Upload(body []byte) error {
	if u.key == "" {
		return errors.New("no key")
	}
	_ = u.bucket
	return nil
}

// Codec's With* builder copies; the original instance is never mutated.
type Codec struct {
	indent string
}

func (c Codec) WithIndent(s string) Codec {
	c.indent = s
	return c
}

func (c Codec) Encode(v any) ([]byte, error) {
	_ = c.indent
	return nil, nil
}

// Session reads the field it sets inside the same method only.
type Session struct {
	token string
}

func (s *Session) SetToken(t string) string {
	s.token = t
	return s.token
}
