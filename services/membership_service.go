package services

import (
	"context"
	"log/slog"
	"time"

	"wallet-chat/auth"
	"wallet-chat/contract"
	"wallet-chat/domain"
	"wallet-chat/domain/event"
	"wallet-chat/errors"
	"wallet-chat/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMembershipService interface {
	CreateRoom(ctx context.Context, creator domain.UserID, name string, roomType domain.RoomType) (domain.Room, error)
	CreateDirectRoom(ctx context.Context, creator domain.UserID, peerWallet string) (domain.Room, bool, error)
	RequestJoin(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Membership, error)
	Approve(ctx context.Context, room domain.RoomID, user, actingAdmin domain.UserID) (domain.Membership, error)
	Reject(ctx context.Context, room domain.RoomID, user, actingAdmin domain.UserID) (domain.Membership, error)
	AddMember(ctx context.Context, room domain.RoomID, wallet string, actingAdmin domain.UserID) (domain.Membership, error)
	Leave(ctx context.Context, room domain.RoomID, user domain.UserID) (LeaveResult, error)
	Remove(ctx context.Context, room domain.RoomID, user, actingAdmin domain.UserID) (domain.Membership, error)
	DeleteRoom(ctx context.Context, room domain.RoomID, actingAdmin domain.UserID) (domain.Room, error)
	TransferAdmin(ctx context.Context, room domain.RoomID, user, actingAdmin domain.UserID) (domain.Room, error)
	RequireApproved(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Room, error)
	GetRoom(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Room, error)
	ListRooms(ctx context.Context, user domain.UserID) ([]domain.Room, error)
	ListPublicRooms(ctx context.Context) ([]domain.Room, error)
	ListMembers(ctx context.Context, room domain.RoomID, user domain.UserID) ([]Member, error)
	ListPending(ctx context.Context, room domain.RoomID, actingAdmin domain.UserID) ([]Member, error)
}

// Member is a membership row with the wallet of its owner.
type Member struct {
	domain.Membership
	Wallet string
}

type LeaveOutcome string

const (
	// LeaveOnly: the leaver was not the admin, or the room is direct.
	LeaveOnly LeaveOutcome = "leave"
	// LeaveAndSucceed: the admin left and the earliest approved member took over.
	LeaveAndSucceed LeaveOutcome = "leave_and_succeed"
	// LeaveOrphaned: the admin left and nobody approved remains.
	LeaveOrphaned LeaveOutcome = "leave_orphaned"
)

// LeaveResult describes what a single leave transaction committed.
type LeaveResult struct {
	Outcome    LeaveOutcome
	Membership domain.Membership
	Successor  *domain.Membership
}

// MembershipService owns every legal membership transition. Each operation is
// one store transaction; the presence layer is told about the outcome only
// once it has committed.
type MembershipService struct {
	store     *repositories.Store
	publisher contract.MembershipPublisher
	log       *slog.Logger
	now       func() time.Time
}

func NewMembershipService(store *repositories.Store, publisher contract.MembershipPublisher, log *slog.Logger) *MembershipService {
	return &MembershipService{store: store, publisher: publisher, log: log, now: time.Now}
}

// CreateRoom creates a public or private room whose creator is its first approved admin.
func (s *MembershipService) CreateRoom(ctx context.Context, creator domain.UserID, name string, roomType domain.RoomType) (domain.Room, error) {
	if err := auth.ValidateCreateRoom(auth.CreateRoomRequest{Name: name, Type: string(roomType)}); err != nil {
		return domain.Room{}, err
	}

	var room domain.Room
	var change event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		user, err := tx.GetUser(creator)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		room = domain.Room{
			ID:        domain.RoomID(uuid.NewString()),
			Name:      name,
			Type:      roomType,
			AdminID:   creator,
			Active:    true,
			CreatedBy: creator,
			CreatedAt: now,
		}
		if err := tx.PutRoom(room); err != nil {
			return err
		}
		if _, _, err := directAdd(tx, room.ID, creator, domain.StatusApproved, true, now); err != nil {
			return err
		}
		change = event.MembershipChanged{Kind: event.MemberApproved, Room: room.ID, UserID: creator, Wallet: user.Wallet, AdminID: creator, At: now}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}

	s.log.Info("Room created", "room_id", room.ID, "type", room.Type, "user_id", creator)
	s.publish(ctx, change)
	return room, nil
}

// CreateDirectRoom returns the active p2p room shared with peerWallet, creating
// it when none exists. created is false for an existing room.
func (s *MembershipService) CreateDirectRoom(ctx context.Context, creator domain.UserID, peerWallet string) (domain.Room, bool, error) {
	if err := auth.ValidateWallet(peerWallet); err != nil {
		return domain.Room{}, false, err
	}

	var room domain.Room
	var created bool
	var changes []event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		user, err := tx.GetUser(creator)
		if err != nil {
			return err
		}
		peer, err := tx.GetUserByWallet(peerWallet)
		if err != nil {
			return err
		}
		if peer.ID == user.ID {
			return errors.ErrSelfDirectRoom
		}

		existing, found, err := tx.DirectRoom(user.ID, peer.ID)
		if err != nil {
			return err
		}
		if found {
			room = existing
			return nil
		}

		now := s.now().UTC()
		room = domain.Room{
			ID:        domain.RoomID(uuid.NewString()),
			Name:      user.Wallet + ":" + peer.Wallet,
			Type:      domain.RoomP2P,
			AdminID:   user.ID,
			Active:    true,
			CreatedBy: user.ID,
			CreatedAt: now,
		}
		if err := tx.PutRoom(room); err != nil {
			return err
		}
		if err := tx.PutDirectRoom(user.ID, peer.ID, room.ID); err != nil {
			return err
		}
		for _, member := range []domain.User{user, peer} {
			if _, _, err := directAdd(tx, room.ID, member.ID, domain.StatusApproved, member.ID == user.ID, now); err != nil {
				return err
			}
			changes = append(changes, event.MembershipChanged{Kind: event.MemberApproved, Room: room.ID, UserID: member.ID, Wallet: member.Wallet, AdminID: user.ID, At: now})
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Room{}, false, err
	}

	if created {
		s.log.Info("Direct room created", "room_id", room.ID, "user_id", creator)
		s.publish(ctx, changes...)
	}
	return room, created, nil
}

// RequestJoin files a pending join request on a public room. Re-requesting
// after a rejection or a departure reuses the same row.
func (s *MembershipService) RequestJoin(ctx context.Context, roomID domain.RoomID, user domain.UserID) (domain.Membership, error) {
	var membership domain.Membership
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		room, err := tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		if room.Type != domain.RoomPublic {
			return errors.ErrRoomNotPublic
		}
		if _, err := tx.GetUser(user); err != nil {
			return err
		}

		now := s.now().UTC()
		m, found, err := tx.GetMembership(roomID, user)
		if err != nil {
			return err
		}
		if found {
			switch m.Status {
			case domain.StatusApproved:
				return errors.ErrAlreadyMember
			case domain.StatusPending:
				return errors.ErrAlreadyPending
			}
		} else {
			m = domain.Membership{RoomID: roomID, UserID: user, CreatedAt: now}
		}
		m.Status = domain.StatusPending
		m.IsAdmin = false
		m.UpdatedAt = now
		membership = m
		return tx.PutMembership(m)
	})
	if err != nil {
		return domain.Membership{}, err
	}

	s.log.Debug("Join requested", "room_id", roomID, "user_id", user)
	return membership, nil
}

// Approve turns a pending request into an approved membership and records the join time.
func (s *MembershipService) Approve(ctx context.Context, roomID domain.RoomID, user, actingAdmin domain.UserID) (domain.Membership, error) {
	membership, change, err := s.resolveRequest(ctx, roomID, user, actingAdmin, domain.StatusApproved)
	if err != nil {
		return domain.Membership{}, err
	}
	s.log.Info("Join request approved", "room_id", roomID, "user_id", user, "admin_id", actingAdmin)
	s.publish(ctx, change)
	return membership, nil
}

// Reject refuses a pending request. The row is kept so the user may ask again.
func (s *MembershipService) Reject(ctx context.Context, roomID domain.RoomID, user, actingAdmin domain.UserID) (domain.Membership, error) {
	membership, _, err := s.resolveRequest(ctx, roomID, user, actingAdmin, domain.StatusRejected)
	if err != nil {
		return domain.Membership{}, err
	}
	s.log.Info("Join request rejected", "room_id", roomID, "user_id", user, "admin_id", actingAdmin)
	return membership, nil
}

func (s *MembershipService) resolveRequest(ctx context.Context, roomID domain.RoomID, user, actingAdmin domain.UserID, status domain.MemberStatus) (domain.Membership, event.MembershipChanged, error) {
	var membership domain.Membership
	var change event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		room, err := tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		if _, err := requireAdmin(tx, roomID, actingAdmin); err != nil {
			return err
		}
		m, found, err := tx.GetMembership(roomID, user)
		if err != nil {
			return err
		}
		if !found || m.Status != domain.StatusPending {
			return errors.ErrNoPendingRequest
		}

		now := s.now().UTC()
		m.Status = status
		m.UpdatedAt = now
		if status == domain.StatusApproved {
			m.JoinedAt = now
			m.LeftAt = nil
		}
		if err := tx.PutMembership(m); err != nil {
			return err
		}
		membership = m
		change = event.MembershipChanged{Kind: event.MemberApproved, Room: roomID, UserID: user, Wallet: walletOf(tx, user), AdminID: room.AdminID, At: now}
		return nil
	})
	return membership, change, err
}

// AddMember lets an admin bring a known wallet straight into a room, bypassing the request step.
func (s *MembershipService) AddMember(ctx context.Context, roomID domain.RoomID, wallet string, actingAdmin domain.UserID) (domain.Membership, error) {
	if err := auth.ValidateWallet(wallet); err != nil {
		return domain.Membership{}, err
	}

	var membership domain.Membership
	var changed bool
	var change event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		room, err := tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		if room.IsDirect() {
			return errors.ErrDirectRoomFixed
		}
		if _, err := requireAdmin(tx, roomID, actingAdmin); err != nil {
			return err
		}
		user, err := tx.GetUserByWallet(wallet)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		membership, changed, err = directAdd(tx, roomID, user.ID, domain.StatusApproved, false, now)
		if err != nil {
			return err
		}
		change = event.MembershipChanged{Kind: event.MemberApproved, Room: roomID, UserID: user.ID, Wallet: user.Wallet, AdminID: room.AdminID, At: now}
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}

	if changed {
		s.log.Info("Member added", "room_id", roomID, "user_id", membership.UserID, "admin_id", actingAdmin)
		s.publish(ctx, change)
	}
	return membership, nil
}

// directAdd upserts a row into status. An existing row is reactivated rather
// than duplicated, and an already approved row is left untouched so that an
// admin is never demoted by a late invitation. changed is false on a no-op.
func directAdd(tx *repositories.Tx, roomID domain.RoomID, user domain.UserID, status domain.MemberStatus, isAdmin bool, now time.Time) (domain.Membership, bool, error) {
	m, found, err := tx.GetMembership(roomID, user)
	if err != nil {
		return domain.Membership{}, false, err
	}
	if found && !m.Status.CanTransitionTo(status) {
		return m, false, nil
	}
	if !found {
		m = domain.Membership{RoomID: roomID, UserID: user, CreatedAt: now}
	}

	m.Status = status
	m.IsAdmin = isAdmin && status == domain.StatusApproved
	m.UpdatedAt = now
	if status == domain.StatusApproved {
		m.JoinedAt = now
		m.LeftAt = nil
	}
	if err := tx.PutMembership(m); err != nil {
		return domain.Membership{}, false, err
	}
	return m, true, nil
}

// Leave ends a pending or approved membership. When the admin leaves, the
// earliest approved member is promoted in the same transaction, so no reader
// ever sees the room without an admin while approved members remain.
func (s *MembershipService) Leave(ctx context.Context, roomID domain.RoomID, user domain.UserID) (LeaveResult, error) {
	var result LeaveResult
	var changes []event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		var err error
		result, changes, err = s.leave(tx, roomID, user)
		return err
	})
	if err != nil {
		return LeaveResult{}, err
	}

	s.log.Info("Member left", "room_id", roomID, "user_id", user, "outcome", result.Outcome)
	s.publish(ctx, changes...)
	return result, nil
}

func (s *MembershipService) leave(tx *repositories.Tx, roomID domain.RoomID, user domain.UserID) (LeaveResult, []event.MembershipChanged, error) {
	room, err := tx.ActiveRoom(roomID)
	if err != nil {
		return LeaveResult{}, nil, err
	}
	m, found, err := tx.GetMembership(roomID, user)
	if err != nil {
		return LeaveResult{}, nil, err
	}
	if !found || !m.Status.CanTransitionTo(domain.StatusLeft) {
		return LeaveResult{}, nil, errors.ErrMembershipNotFound
	}

	now := s.now().UTC()
	wasAdmin := m.ApprovedAdmin()
	m.Status = domain.StatusLeft
	m.IsAdmin = false
	m.LeftAt = &now
	m.UpdatedAt = now
	if err := tx.PutMembership(m); err != nil {
		return LeaveResult{}, nil, err
	}

	result := LeaveResult{Outcome: LeaveOnly, Membership: m}
	changes := []event.MembershipChanged{
		{Kind: event.MemberDeparted, Room: roomID, UserID: user, Wallet: walletOf(tx, user), AdminID: room.AdminID, At: now},
	}
	if !wasAdmin || room.IsDirect() {
		return result, changes, nil
	}

	remaining, err := tx.ApprovedMembers(roomID)
	if err != nil {
		return LeaveResult{}, nil, err
	}
	remaining = lo.Filter(remaining, func(other domain.Membership, _ int) bool { return other.UserID != user })
	if len(remaining) == 0 {
		room.AdminID = ""
		result.Outcome = LeaveOrphaned
		changes[0].AdminID = ""
		return result, changes, tx.PutRoom(room)
	}

	successor := remaining[0]
	successor.IsAdmin = true
	successor.UpdatedAt = now
	if err := tx.PutMembership(successor); err != nil {
		return LeaveResult{}, nil, err
	}
	room.AdminID = successor.UserID
	if err := tx.PutRoom(room); err != nil {
		return LeaveResult{}, nil, err
	}

	result.Outcome = LeaveAndSucceed
	result.Successor = &successor
	changes[0].AdminID = successor.UserID
	changes = append(changes, event.MembershipChanged{Kind: event.AdminTransferred, Room: roomID, UserID: successor.UserID, Wallet: walletOf(tx, successor.UserID), AdminID: successor.UserID, At: now})
	return result, changes, nil
}

// Remove deletes a member's row. The removed user may ask to join again later.
func (s *MembershipService) Remove(ctx context.Context, roomID domain.RoomID, user, actingAdmin domain.UserID) (domain.Membership, error) {
	if user == actingAdmin {
		return domain.Membership{}, errors.ErrCannotRemoveSelf
	}

	var removed domain.Membership
	var change event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		room, err := tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		if room.IsDirect() {
			return errors.ErrDirectRoomFixed
		}
		if _, err := requireAdmin(tx, roomID, actingAdmin); err != nil {
			return err
		}
		m, found, err := tx.GetMembership(roomID, user)
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrMembershipNotFound
		}
		if err := tx.DeleteMembership(roomID, user); err != nil {
			return err
		}
		removed = m
		change = event.MembershipChanged{Kind: event.MemberRemoved, Room: roomID, UserID: user, Wallet: walletOf(tx, user), AdminID: room.AdminID, At: s.now().UTC()}
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}

	s.log.Info("Member removed", "room_id", roomID, "user_id", user, "admin_id", actingAdmin)
	s.publish(ctx, change)
	return removed, nil
}

// DeleteRoom soft-deactivates a room. Rows are kept but the room is
// unreachable for every later operation.
func (s *MembershipService) DeleteRoom(ctx context.Context, roomID domain.RoomID, actingAdmin domain.UserID) (domain.Room, error) {
	var room domain.Room
	var change event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		var err error
		room, err = tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		if _, err := requireAdmin(tx, roomID, actingAdmin); err != nil {
			return err
		}
		now := s.now().UTC()
		room.Active = false
		room.DeletedAt = &now
		change = event.MembershipChanged{Kind: event.RoomDeactivated, Room: roomID, AdminID: room.AdminID, At: now}
		return tx.PutRoom(room)
	})
	if err != nil {
		return domain.Room{}, err
	}

	s.log.Info("Room deleted", "room_id", roomID, "admin_id", actingAdmin)
	s.publish(ctx, change)
	return room, nil
}

// TransferAdmin hands the admin role to another approved member in one swap.
func (s *MembershipService) TransferAdmin(ctx context.Context, roomID domain.RoomID, user, actingAdmin domain.UserID) (domain.Room, error) {
	var room domain.Room
	var change *event.MembershipChanged
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		var err error
		room, err = tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		if room.IsDirect() {
			return errors.ErrDirectRoomFixed
		}
		current, err := requireAdmin(tx, roomID, actingAdmin)
		if err != nil {
			return err
		}
		if user == actingAdmin {
			return nil
		}
		next, err := requireApproved(tx, roomID, user)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		current.IsAdmin = false
		current.UpdatedAt = now
		next.IsAdmin = true
		next.UpdatedAt = now
		room.AdminID = user
		for _, m := range []domain.Membership{current, next} {
			if err := tx.PutMembership(m); err != nil {
				return err
			}
		}
		change = &event.MembershipChanged{Kind: event.AdminTransferred, Room: roomID, UserID: user, Wallet: walletOf(tx, user), AdminID: user, At: now}
		return tx.PutRoom(room)
	})
	if err != nil {
		return domain.Room{}, err
	}

	if change != nil {
		s.log.Info("Admin transferred", "room_id", roomID, "user_id", user, "admin_id", actingAdmin)
		s.publish(ctx, *change)
	}
	return room, nil
}

// RequireApproved is the single current-approval query used before any
// privileged realtime or history action. It always reads the store.
func (s *MembershipService) RequireApproved(ctx context.Context, roomID domain.RoomID, user domain.UserID) (domain.Room, error) {
	var room domain.Room
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		var err error
		room, err = tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		_, err = requireApproved(tx, roomID, user)
		return err
	})
	return room, err
}

// GetRoom shows public rooms to anyone and other rooms to their approved members.
func (s *MembershipService) GetRoom(ctx context.Context, roomID domain.RoomID, user domain.UserID) (domain.Room, error) {
	var room domain.Room
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		var err error
		room, err = tx.ActiveRoom(roomID)
		if err != nil || room.Type == domain.RoomPublic {
			return err
		}
		_, err = requireApproved(tx, roomID, user)
		return err
	})
	return room, err
}

// ListRooms returns the active rooms where user is approved.
func (s *MembershipService) ListRooms(ctx context.Context, user domain.UserID) ([]domain.Room, error) {
	var rooms []domain.Room
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		rows, err := tx.UserMemberships(user)
		if err != nil {
			return err
		}
		approved := lo.FilterMap(rows, func(m domain.Membership, _ int) (domain.RoomID, bool) {
			return m.RoomID, m.Approved()
		})
		rooms, err = tx.ActiveRooms(approved)
		return err
	})
	return rooms, err
}

func (s *MembershipService) ListPublicRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		var err error
		rooms, err = tx.PublicRooms()
		return err
	})
	return rooms, err
}

// ListMembers returns the approved members of a room in join order.
func (s *MembershipService) ListMembers(ctx context.Context, roomID domain.RoomID, user domain.UserID) ([]Member, error) {
	var members []Member
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		if _, err := tx.ActiveRoom(roomID); err != nil {
			return err
		}
		if _, err := requireApproved(tx, roomID, user); err != nil {
			return err
		}
		rows, err := tx.ApprovedMembers(roomID)
		if err != nil {
			return err
		}
		members = withWallets(tx, rows)
		return nil
	})
	return members, err
}

// ListPending returns the open join requests of a room, for its admin.
func (s *MembershipService) ListPending(ctx context.Context, roomID domain.RoomID, actingAdmin domain.UserID) ([]Member, error) {
	var members []Member
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		if _, err := tx.ActiveRoom(roomID); err != nil {
			return err
		}
		if _, err := requireAdmin(tx, roomID, actingAdmin); err != nil {
			return err
		}
		rows, err := tx.RoomMemberships(roomID)
		if err != nil {
			return err
		}
		pending := lo.Filter(rows, func(m domain.Membership, _ int) bool { return m.Status == domain.StatusPending })
		members = withWallets(tx, pending)
		return nil
	})
	return members, err
}

func (s *MembershipService) publish(ctx context.Context, changes ...event.MembershipChanged) {
	if s.publisher == nil || len(changes) == 0 {
		return
	}
	s.publisher.Publish(ctx, changes...)
}

func requireApproved(tx *repositories.Tx, roomID domain.RoomID, user domain.UserID) (domain.Membership, error) {
	m, found, err := tx.GetMembership(roomID, user)
	if err != nil {
		return domain.Membership{}, err
	}
	if !found || !m.Approved() {
		return domain.Membership{}, errors.ErrNotMember
	}
	return m, nil
}

func requireAdmin(tx *repositories.Tx, roomID domain.RoomID, user domain.UserID) (domain.Membership, error) {
	m, found, err := tx.GetMembership(roomID, user)
	if err != nil {
		return domain.Membership{}, err
	}
	if !found || !m.ApprovedAdmin() {
		return domain.Membership{}, errors.ErrNotAdmin
	}
	return m, nil
}

func walletOf(tx *repositories.Tx, user domain.UserID) string {
	u, err := tx.GetUser(user)
	if err != nil {
		return ""
	}
	return u.Wallet
}

func withWallets(tx *repositories.Tx, rows []domain.Membership) []Member {
	return lo.Map(rows, func(m domain.Membership, _ int) Member {
		return Member{Membership: m, Wallet: walletOf(tx, m.UserID)}
	})
}
