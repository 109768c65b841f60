package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"wallet-chat/domain"
	"wallet-chat/mocks"
	"wallet-chat/repositories"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stepClock advances one second on every reading so join times are distinct.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	ctx         context.Context
	store       *repositories.Store
	clock       *stepClock
	publisher   *mocks.MockMembershipPublisher
	memberships *MembershipService
	invitations *InvitationService
	chat        *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = writer.Close()
		_ = db.Close()
	})

	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockMembershipPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).AnyTimes()

	store := repositories.NewStore(db, log)
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	memberships := NewMembershipService(store, publisher, log)
	memberships.now = clock.Now
	invitations := NewInvitationService(store, publisher, domain.DefaultInvitationTTL, log)
	invitations.now = clock.Now
	chat := NewChatService(store, repositories.NewMessageIndex(writer, log), 2000, 50, log)
	chat.now = clock.Now

	return &fixture{
		ctx:         context.Background(),
		store:       store,
		clock:       clock,
		publisher:   publisher,
		memberships: memberships,
		invitations: invitations,
		chat:        chat,
	}
}

func walletFor(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func (f *fixture) user(t *testing.T, n int) domain.User {
	t.Helper()
	var user domain.User
	err := f.store.Update(f.ctx, func(tx *repositories.Tx) error {
		var err error
		user, _, err = tx.EnsureUser(walletFor(n), f.clock.Now())
		return err
	})
	require.NoError(t, err)
	return user
}

func identity(u domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Wallet: u.Wallet}
}

func (f *fixture) membership(t *testing.T, room domain.RoomID, user domain.UserID) (domain.Membership, bool) {
	t.Helper()
	var m domain.Membership
	var found bool
	err := f.store.View(f.ctx, func(tx *repositories.Tx) error {
		var err error
		m, found, err = tx.GetMembership(room, user)
		return err
	})
	require.NoError(t, err)
	return m, found
}

func (f *fixture) rows(t *testing.T, room domain.RoomID) []domain.Membership {
	t.Helper()
	var rows []domain.Membership
	err := f.store.View(f.ctx, func(tx *repositories.Tx) error {
		var err error
		rows, err = tx.RoomMemberships(room)
		return err
	})
	require.NoError(t, err)
	return rows
}

func (f *fixture) admins(t *testing.T, room domain.RoomID) []domain.UserID {
	t.Helper()
	var admins []domain.UserID
	for _, m := range f.rows(t, room) {
		if m.ApprovedAdmin() {
			admins = append(admins, m.UserID)
		}
	}
	return admins
}

// approvedMember has user join a public room through request and approval.
func (f *fixture) approvedMember(t *testing.T, room domain.RoomID, user, admin domain.UserID) {
	t.Helper()
	_, err := f.memberships.RequestJoin(f.ctx, room, user)
	require.NoError(t, err)
	_, err = f.memberships.Approve(f.ctx, room, user, admin)
	require.NoError(t, err)
}
