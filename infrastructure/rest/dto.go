package rest

import (
	"time"

	"wallet-chat/domain"
	"wallet-chat/services"

	"github.com/samber/lo"
)

type nonceRequest struct {
	Wallet string `json:"wallet"`
}

type nonceResponse struct {
	Message string `json:"message"`
}

type verifyRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID        domain.UserID `json:"id"`
	Wallet    string        `json:"wallet"`
	CreatedAt time.Time     `json:"created_at"`
}

type createRoomRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type directRoomRequest struct {
	Wallet string `json:"wallet"`
}

type walletRequest struct {
	Wallet string `json:"wallet"`
}

type transferAdminRequest struct {
	UserID domain.UserID `json:"user_id"`
}

type roomResponse struct {
	ID        domain.RoomID   `json:"id"`
	Name      string          `json:"name"`
	Type      domain.RoomType `json:"type"`
	AdminID   domain.UserID   `json:"admin_id,omitempty"`
	CreatedBy domain.UserID   `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

type directRoomResponse struct {
	Room    roomResponse `json:"room"`
	Created bool         `json:"created"`
}

type membershipResponse struct {
	RoomID   domain.RoomID       `json:"room_id"`
	UserID   domain.UserID       `json:"user_id"`
	Wallet   string              `json:"wallet,omitempty"`
	Status   domain.MemberStatus `json:"status"`
	IsAdmin  bool                `json:"is_admin"`
	JoinedAt *time.Time          `json:"joined_at,omitempty"`
	LeftAt   *time.Time          `json:"left_at,omitempty"`
}

type leaveResponse struct {
	Outcome    services.LeaveOutcome `json:"outcome"`
	Membership membershipResponse    `json:"membership"`
	Successor  *membershipResponse   `json:"successor,omitempty"`
}

type invitationResponse struct {
	ID            domain.InvitationID     `json:"id"`
	RoomID        domain.RoomID           `json:"room_id"`
	InviterID     domain.UserID           `json:"inviter_id"`
	InviteeWallet string                  `json:"invitee_wallet"`
	Status        domain.InvitationStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
	ExpiresAt     time.Time               `json:"expires_at"`
	RespondedAt   *time.Time              `json:"responded_at,omitempty"`
}

type acceptResponse struct {
	Invitation invitationResponse `json:"invitation"`
	Membership membershipResponse `json:"membership"`
}

type messageResponse struct {
	ID        string        `json:"id"`
	RoomID    domain.RoomID `json:"room_id"`
	SenderID  domain.UserID `json:"sender_id"`
	Wallet    string        `json:"sender_wallet"`
	Content   string        `json:"content"`
	Lang      string        `json:"lang,omitempty"`
	LikeCount int           `json:"like_count"`
	CreatedAt time.Time     `json:"created_at"`
}

type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

func toUser(u domain.User) userResponse {
	return userResponse{ID: u.ID, Wallet: u.Wallet, CreatedAt: u.CreatedAt}
}

func toRoom(r domain.Room) roomResponse {
	return roomResponse{ID: r.ID, Name: r.Name, Type: r.Type, AdminID: r.AdminID, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt}
}

func toRooms(rooms []domain.Room) []roomResponse {
	return lo.Map(rooms, func(r domain.Room, _ int) roomResponse { return toRoom(r) })
}

func toMembership(m domain.Membership, wallet string) membershipResponse {
	res := membershipResponse{
		RoomID:  m.RoomID,
		UserID:  m.UserID,
		Wallet:  wallet,
		Status:  m.Status,
		IsAdmin: m.IsAdmin,
		LeftAt:  m.LeftAt,
	}
	if !m.JoinedAt.IsZero() {
		joined := m.JoinedAt
		res.JoinedAt = &joined
	}
	return res
}

func toMembers(members []services.Member) []membershipResponse {
	return lo.Map(members, func(m services.Member, _ int) membershipResponse { return toMembership(m.Membership, m.Wallet) })
}

func toLeave(result services.LeaveResult) leaveResponse {
	res := leaveResponse{Outcome: result.Outcome, Membership: toMembership(result.Membership, "")}
	if result.Successor != nil {
		successor := toMembership(*result.Successor, "")
		res.Successor = &successor
	}
	return res
}

func toInvitation(i domain.Invitation) invitationResponse {
	return invitationResponse{
		ID:            i.ID,
		RoomID:        i.RoomID,
		InviterID:     i.InviterID,
		InviteeWallet: i.InviteeWallet,
		Status:        i.Status,
		CreatedAt:     i.CreatedAt,
		ExpiresAt:     i.ExpiresAt,
		RespondedAt:   i.RespondedAt,
	}
}

func toInvitations(invitations []domain.Invitation) []invitationResponse {
	return lo.Map(invitations, func(i domain.Invitation, _ int) invitationResponse { return toInvitation(i) })
}

func toMessages(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:        m.ID.String(),
			RoomID:    m.RoomID,
			SenderID:  m.SenderID,
			Wallet:    m.SenderWallet,
			Content:   m.Content,
			Lang:      m.Lang,
			LikeCount: m.LikeCount,
			CreatedAt: m.CreatedAt,
		}
	})
}
