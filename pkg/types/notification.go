package domain

import (
	"time"
)

// DedupEntry records when an identity key first triggered a notification.
type DedupEntry struct {
	Key       string    `json:"key"`
	FirstSeen time.Time `json:"first_seen"`
}

// NotificationEnvelope is one delivery of a product batch to a destination.
// The dispatcher creates it per delivery and updates Attempt and LastError
// as it retries. Notifiers that post a batch in several messages advance
// Sent past the leading products already posted.
type NotificationEnvelope struct {
	RunID       string
	Destination string
	Products    []Product
	Sent        int
	Attempt     int
	LastError   error
}

// DeliveryOutcome is the terminal result of delivering one envelope.
type DeliveryOutcome struct {
	Destination string        `json:"destination"`
	Delivered   bool          `json:"delivered"`
	Attempts    int           `json:"attempts"`
	Products    int           `json:"products"`
	Error       string        `json:"error,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}
