// Package bus abstracts the message channels the simulator is handed at
// startup. The simulation core only sees Source and Sink; the Kafka
// implementations live here so the core stays free of broker details.
package bus

import (
	"context"
	"errors"
)

// ErrNoMessage is returned by Source.Fetch when no message arrived before
// the caller's deadline.
var ErrNoMessage = errors.New("bus: no message before deadline")

// Source yields inbound messages. Fetch blocks until a message is available,
// the context expires (ErrNoMessage) or the connection fails.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Sink publishes outbound messages. Publish is synchronous: it returns only
// after the broker has acknowledged delivery.
type Sink interface {
	Publish(ctx context.Context, payload []byte) error
}
