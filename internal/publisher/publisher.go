// Package publisher defines the failure-event publishing port with
// in-memory and Pub/Sub implementations.
package publisher

import "context"

// Publisher delivers a JSON-serializable payload to a topic and
// returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
