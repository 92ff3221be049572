// Package messagequeue defines the message queue port and the subjects the
// assistant publishes on.
package messagequeue

import "context"

// Subjects published by the assistant. Execution events use
// SubjectExecutionPrefix + "." + event type, e.g. "assistant.execution.booking_created".
const (
	SubjectExecutionPrefix = "assistant.execution"
	SubjectAgentHealth     = "assistant.agents.health"
	SubjectMemoryLineage   = "assistant.memory.consolidated"
)

// ExecutionSubject returns the subject for an execution event type.
func ExecutionSubject(eventType string) string {
	return SubjectExecutionPrefix + "." + eventType
}

// Handler processes one delivered message. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, subject string, data []byte) error

// Publisher is the write side; notifiers, broadcasters and memory lineage only need this.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Queue is a connected publish/subscribe transport.
type Queue interface {
	Publisher

	// Subscribe delivers messages on subject to handler until the returned
	// cancel func is called.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	IsConnected() bool

	// Drain lets in-flight deliveries finish, then closes. Close does not wait.
	Drain() error
	Close() error
}
