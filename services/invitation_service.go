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

	"github.com/samber/lo"
)

type IInvitationService interface {
	Create(ctx context.Context, room domain.RoomID, inviter domain.UserID, inviteeWallet string) (domain.Invitation, error)
	ListForWallet(ctx context.Context, wallet string) ([]domain.Invitation, error)
	ListForRoom(ctx context.Context, room domain.RoomID, actingAdmin domain.UserID) ([]domain.Invitation, error)
	Accept(ctx context.Context, id domain.InvitationID, actor domain.Identity) (domain.Invitation, domain.Membership, error)
	Reject(ctx context.Context, id domain.InvitationID, actor domain.Identity) (domain.Invitation, error)
}

// InvitationService manages time-bounded invitations to private rooms.
// Expiry is only ever evaluated against the clock at read time.
type InvitationService struct {
	store     *repositories.Store
	publisher contract.MembershipPublisher
	ttl       time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewInvitationService(store *repositories.Store, publisher contract.MembershipPublisher, ttl time.Duration, log *slog.Logger) *InvitationService {
	return &InvitationService{store: store, publisher: publisher, ttl: ttl, log: log, now: time.Now}
}

// Create invites a wallet into a private room on behalf of its admin.
func (s *InvitationService) Create(ctx context.Context, roomID domain.RoomID, inviter domain.UserID, inviteeWallet string) (domain.Invitation, error) {
	if err := auth.ValidateWallet(inviteeWallet); err != nil {
		return domain.Invitation{}, err
	}

	var invitation domain.Invitation
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		room, err := tx.ActiveRoom(roomID)
		if err != nil {
			return err
		}
		if room.Type != domain.RoomPrivate {
			return errors.ErrRoomNotPrivate
		}
		if _, err := requireAdmin(tx, roomID, inviter); err != nil {
			return err
		}

		now := s.now()
		pending, found, err := tx.PendingInvitation(roomID, inviteeWallet)
		if err != nil {
			return err
		}
		if found && !pending.Expired(now) {
			return errors.ErrInvitationPending
		}
		if invitee, err := tx.GetUserByWallet(inviteeWallet); err == nil {
			if _, err := requireApproved(tx, roomID, invitee.ID); err == nil {
				return errors.ErrAlreadyMember
			}
		} else if !errors.IsNotFound(err) {
			return err
		}

		invitation, err = domain.NewInvitation(domain.CreateInvitationInput{
			RoomID:        roomID,
			InviterID:     inviter,
			InviteeWallet: inviteeWallet,
			TTL:           s.ttl,
		}, func() time.Time { return now }, nil)
		if err != nil {
			return err
		}
		return tx.PutInvitation(invitation)
	})
	if err != nil {
		return domain.Invitation{}, err
	}

	s.log.Info("Invitation created", "room_id", roomID, "invitation_id", invitation.ID, "user_id", inviter)
	return invitation, nil
}

// ListForWallet returns the pending, unexpired invitations of wallet into rooms that are still active.
func (s *InvitationService) ListForWallet(ctx context.Context, wallet string) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		all, err := tx.InvitationsForWallet(wallet)
		if err != nil {
			return err
		}
		invitations, err = s.active(tx, all)
		return err
	})
	return invitations, err
}

// ListForRoom returns the active invitations of a room, for its admin.
func (s *InvitationService) ListForRoom(ctx context.Context, roomID domain.RoomID, actingAdmin domain.UserID) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := s.store.View(ctx, func(tx *repositories.Tx) error {
		if _, err := tx.ActiveRoom(roomID); err != nil {
			return err
		}
		if _, err := requireAdmin(tx, roomID, actingAdmin); err != nil {
			return err
		}
		all, err := tx.RoomInvitations(roomID)
		if err != nil {
			return err
		}
		invitations, err = s.active(tx, all)
		return err
	})
	return invitations, err
}

func (s *InvitationService) active(tx *repositories.Tx, invitations []domain.Invitation) ([]domain.Invitation, error) {
	now := s.now()
	var active []domain.Invitation
	for _, inv := range lo.Filter(invitations, func(inv domain.Invitation, _ int) bool { return inv.Active(now) }) {
		_, err := tx.ActiveRoom(inv.RoomID)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		active = append(active, inv)
	}
	return active, nil
}

// Accept marks the invitation accepted and approves the invitee in the same
// transaction: either both writes are visible or neither is.
func (s *InvitationService) Accept(ctx context.Context, id domain.InvitationID, actor domain.Identity) (domain.Invitation, domain.Membership, error) {
	var invitation domain.Invitation
	var membership domain.Membership
	var changed bool
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		var err error
		invitation, membership, changed, err = s.accept(tx, id, actor)
		return err
	})
	if err != nil {
		return domain.Invitation{}, domain.Membership{}, err
	}

	s.log.Info("Invitation accepted", "room_id", invitation.RoomID, "invitation_id", id, "user_id", actor.UserID)
	if changed && s.publisher != nil {
		s.publisher.Publish(ctx, event.MembershipChanged{
			Kind:   event.MemberApproved,
			Room:   invitation.RoomID,
			UserID: actor.UserID,
			Wallet: domain.NormalizeWallet(actor.Wallet),
			At:     membership.UpdatedAt,
		})
	}
	return invitation, membership, nil
}

func (s *InvitationService) accept(tx *repositories.Tx, id domain.InvitationID, actor domain.Identity) (domain.Invitation, domain.Membership, bool, error) {
	inv, err := s.resolvable(tx, id, actor)
	if err != nil {
		return domain.Invitation{}, domain.Membership{}, false, err
	}

	now := s.now().UTC()
	inv.Status = domain.InvitationAccepted
	inv.RespondedAt = &now
	if err := tx.PutInvitation(inv); err != nil {
		return domain.Invitation{}, domain.Membership{}, false, err
	}
	membership, changed, err := directAdd(tx, inv.RoomID, actor.UserID, domain.StatusApproved, false, now)
	if err != nil {
		return domain.Invitation{}, domain.Membership{}, false, err
	}
	return inv, membership, changed, nil
}

// Reject declines the invitation. Membership is not touched.
func (s *InvitationService) Reject(ctx context.Context, id domain.InvitationID, actor domain.Identity) (domain.Invitation, error) {
	var invitation domain.Invitation
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		inv, err := s.resolvable(tx, id, actor)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		inv.Status = domain.InvitationRejected
		inv.RespondedAt = &now
		invitation = inv
		return tx.PutInvitation(inv)
	})
	if err != nil {
		return domain.Invitation{}, err
	}

	s.log.Info("Invitation rejected", "room_id", invitation.RoomID, "invitation_id", id, "user_id", actor.UserID)
	return invitation, nil
}

// resolvable loads an invitation the actor may still accept or reject.
func (s *InvitationService) resolvable(tx *repositories.Tx, id domain.InvitationID, actor domain.Identity) (domain.Invitation, error) {
	inv, err := tx.GetInvitation(id)
	if err != nil {
		return domain.Invitation{}, err
	}
	if _, err := tx.ActiveRoom(inv.RoomID); err != nil {
		return domain.Invitation{}, err
	}
	if !domain.SameWallet(inv.InviteeWallet, actor.Wallet) {
		return domain.Invitation{}, errors.ErrNotInvitee
	}
	if inv.Expired(s.now()) {
		return domain.Invitation{}, errors.ErrInvitationExpired
	}
	if inv.Status != domain.InvitationPending {
		return domain.Invitation{}, errors.ErrInvitationResolved
	}
	return inv, nil
}
