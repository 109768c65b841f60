package workers

import (
	"context"
	"log/slog"

	"wallet-chat/contract"
	"wallet-chat/domain/event"
	"wallet-chat/errors"
)

// MembershipMirror carries committed membership changes from the services to
// the presence layer. Publish is called after commit and never rolls back
// anything: a lost change only leaves a live subscription stale until the
// session joins, leaves or reconnects.
type MembershipMirror struct {
	log      *slog.Logger
	changes  chan event.MembershipChanged
	observer contract.MembershipObserver
}

func NewMembershipMirror(log *slog.Logger, bufferSize int) *MembershipMirror {
	return &MembershipMirror{log: log, changes: make(chan event.MembershipChanged, bufferSize)}
}

// Observe sets the component the changes are applied to.
func (m *MembershipMirror) Observe(observer contract.MembershipObserver) *MembershipMirror {
	m.observer = observer
	return m
}

func (m *MembershipMirror) Publish(ctx context.Context, changes ...event.MembershipChanged) {
	for i, change := range changes {
		select {
		case m.changes <- change:
		case <-ctx.Done():
			for _, lost := range changes[i:] {
				m.log.Warn("Membership change lost", "kind", lost.Kind, "room_id", lost.Room,
					"user_id", lost.UserID, "error", errors.ErrMembershipChangesLost)
			}
			return
		}
	}
}

func (m *MembershipMirror) Run(ctx context.Context) error {
	for {
		select {
		case change := <-m.changes:
			if m.observer == nil {
				m.log.Warn("No observer for membership change", "kind", change.Kind, "room_id", change.Room)
				continue
			}
			m.observer.Mirror(ctx, change)
		case <-ctx.Done():
			m.log.Debug("Context done, stopping membership mirror")
			return nil
		}
	}
}

// Backlog reports how many changes wait to be mirrored and the buffer size.
func (m *MembershipMirror) Backlog() (int, int) {
	return len(m.changes), cap(m.changes)
}
