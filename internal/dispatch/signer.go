package dispatch

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReplayWindowExceeded is returned when a timestamp is outside the replay window.
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")
)

// DefaultReplayWindow is the default replay protection window for receivers.
const DefaultReplayWindow = 5 * time.Minute

// GenerateSignature creates an HMAC-SHA256 signature for a delivery payload.
// The canonical string format is: "{timestamp}.{payload}"
func GenerateSignature(secret string, timestamp int64, payload []byte) string {
	canonical := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateSignature verifies a delivery signature with replay protection.
// Receivers can use this to authenticate pushed documents.
func ValidateSignature(secret, signature string, timestamp int64, payload []byte, replayWindow time.Duration) error {
	now := time.Now().Unix()
	diff := now - timestamp
	if diff < 0 {
		diff = -diff
	}
	if diff > int64(replayWindow.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := GenerateSignature(secret, timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// GenerateSecret creates a cryptographically secure random signing secret,
// hex-encoded for easy copy-paste (64 chars).
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
