package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channel names. Audit fan-out is advisory: the audit store is the
// source of truth, subscribers get a copy for dashboards and alerting.
const (
	ChannelAuditEvents = "audit.events"
)
