//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"wallet-chat/domain"
	"wallet-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one realtime connection.
// Consume must not block on a slow peer.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// TokenVerifier resolves a session token to the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// MembershipPublisher carries committed membership changes to the presence layer.
type MembershipPublisher interface {
	Publish(ctx context.Context, changes ...event.MembershipChanged)
}

// MembershipObserver applies a committed membership change to live sessions.
type MembershipObserver interface {
	Mirror(ctx context.Context, change event.MembershipChanged)
}
