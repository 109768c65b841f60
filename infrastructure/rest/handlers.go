package rest

import (
	"net/http"
	"strconv"

	"wallet-chat/auth"
	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/gorilla/mux"
)

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	rt.writeJSON(w, http.StatusOK, rt.health.Report())
}

func (rt *Router) nonce(w http.ResponseWriter, r *http.Request) {
	var body nonceRequest
	if err := rt.decode(r, &body); err != nil {
		rt.writeError(w, err)
		return
	}
	message, err := rt.auth.Nonce(r.Context(), body.Wallet)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, nonceResponse{Message: message})
}

func (rt *Router) verify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := rt.decode(r, &body); err != nil {
		rt.writeError(w, err)
		return
	}
	token, user, err := rt.auth.Verify(r.Context(), body.Wallet, body.Signature)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, verifyResponse{Token: token.String(), User: toUser(user)})
}

func (rt *Router) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := rt.memberships.ListRooms(r.Context(), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toRooms(rooms))
}

func (rt *Router) listPublicRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := rt.memberships.ListPublicRooms(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toRooms(rooms))
}

func (rt *Router) createRoom(w http.ResponseWriter, r *http.Request) {
	var body createRoomRequest
	if err := rt.decode(r, &body); err != nil {
		rt.writeError(w, err)
		return
	}
	room, err := rt.memberships.CreateRoom(r.Context(), caller(r).UserID, body.Name, domain.RoomType(body.Type))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusCreated, toRoom(room))
}

func (rt *Router) createDirectRoom(w http.ResponseWriter, r *http.Request) {
	var body directRoomRequest
	if err := rt.decode(r, &body); err != nil {
		rt.writeError(w, err)
		return
	}
	room, created, err := rt.memberships.CreateDirectRoom(r.Context(), caller(r).UserID, body.Wallet)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	rt.writeJSON(w, status, directRoomResponse{Room: toRoom(room), Created: created})
}

func (rt *Router) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := rt.memberships.GetRoom(r.Context(), roomID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toRoom(room))
}

func (rt *Router) deleteRoom(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.memberships.DeleteRoom(r.Context(), roomID(r), caller(r).UserID); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) requestJoin(w http.ResponseWriter, r *http.Request) {
	m, err := rt.memberships.RequestJoin(r.Context(), roomID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusAccepted, toMembership(m, caller(r).Wallet))
}

func (rt *Router) leave(w http.ResponseWriter, r *http.Request) {
	result, err := rt.memberships.Leave(r.Context(), roomID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toLeave(result))
}

func (rt *Router) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := rt.memberships.ListMembers(r.Context(), roomID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toMembers(members))
}

func (rt *Router) addMember(w http.ResponseWriter, r *http.Request) {
	var body walletRequest
	if err := rt.decode(r, &body); err != nil {
		rt.writeError(w, err)
		return
	}
	m, err := rt.memberships.AddMember(r.Context(), roomID(r), body.Wallet, caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusCreated, toMembership(m, domain.NormalizeWallet(body.Wallet)))
}

func (rt *Router) removeMember(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.memberships.Remove(r.Context(), roomID(r), userID(r), caller(r).UserID); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) transferAdmin(w http.ResponseWriter, r *http.Request) {
	var body transferAdminRequest
	if err := rt.decode(r, &body); err != nil {
		rt.writeError(w, err)
		return
	}
	room, err := rt.memberships.TransferAdmin(r.Context(), roomID(r), body.UserID, caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toRoom(room))
}

func (rt *Router) listPending(w http.ResponseWriter, r *http.Request) {
	members, err := rt.memberships.ListPending(r.Context(), roomID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toMembers(members))
}

func (rt *Router) approve(w http.ResponseWriter, r *http.Request) {
	m, err := rt.memberships.Approve(r.Context(), roomID(r), userID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toMembership(m, ""))
}

func (rt *Router) reject(w http.ResponseWriter, r *http.Request) {
	m, err := rt.memberships.Reject(r.Context(), roomID(r), userID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toMembership(m, ""))
}

func (rt *Router) listRoomInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := rt.invitations.ListForRoom(r.Context(), roomID(r), caller(r).UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toInvitations(invitations))
}

func (rt *Router) createInvitation(w http.ResponseWriter, r *http.Request) {
	var body walletRequest
	if err := rt.decode(r, &body); err != nil {
		rt.writeError(w, err)
		return
	}
	invitation, err := rt.invitations.Create(r.Context(), roomID(r), caller(r).UserID, body.Wallet)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusCreated, toInvitation(invitation))
}

func (rt *Router) listMyInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := rt.invitations.ListForWallet(r.Context(), caller(r).Wallet)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toInvitations(invitations))
}

func (rt *Router) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	invitation, m, err := rt.invitations.Accept(r.Context(), invitationID(r), caller(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, acceptResponse{
		Invitation: toInvitation(invitation),
		Membership: toMembership(m, domain.NormalizeWallet(caller(r).Wallet)),
	})
}

func (rt *Router) rejectInvitation(w http.ResponseWriter, r *http.Request) {
	invitation, err := rt.invitations.Reject(r.Context(), invitationID(r), caller(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, toInvitation(invitation))
}

func (rt *Router) listMessages(w http.ResponseWriter, r *http.Request) {
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		rt.writeError(w, err)
		return
	}
	messages, next, err := rt.chat.GetMessages(r.Context(), caller(r).UserID, roomID(r), cursor, limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, messagesResponse{Messages: toMessages(messages), Cursor: next})
}

func (rt *Router) searchMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		rt.writeError(w, err)
		return
	}
	query := r.URL.Query()
	messages, err := rt.chat.Search(r.Context(), caller(r).UserID, roomID(r), query.Get("q"), query.Get("lang"), limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, messagesResponse{Messages: toMessages(messages)})
}

// caller is set by the auth middleware on every protected route.
func caller(r *http.Request) domain.Identity {
	identity, _ := auth.IdentityFromContext(r.Context())
	return identity
}

func roomID(r *http.Request) domain.RoomID { return domain.RoomID(mux.Vars(r)["id"]) }

func userID(r *http.Request) domain.UserID { return domain.UserID(mux.Vars(r)["userID"]) }

func invitationID(r *http.Request) domain.InvitationID {
	return domain.InvitationID(mux.Vars(r)["id"])
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.ErrInvalidPayload
	}
	return n, nil
}
