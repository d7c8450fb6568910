package model

import "time"

// Customer is a receiver of document deliveries. EndpointURL is where
// documents are pushed; SigningSecret is used to sign outbound payloads so the
// customer can verify origin. The secret is generated at registration and
// never updated in place.
type Customer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	EndpointURL   string    `json:"endpoint_url"`
	SigningSecret string    `json:"-"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}
