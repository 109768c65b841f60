// Package rest exposes the membership, invitation and history operations over HTTP.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"wallet-chat/auth"
	"wallet-chat/contract"
	"wallet-chat/errors"
	"wallet-chat/observability"
	"wallet-chat/services"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type Deps struct {
	Log         *slog.Logger
	Verifier    contract.TokenVerifier
	Auth        services.IAuthService
	Memberships services.IMembershipService
	Invitations services.IInvitationService
	Chat        services.IChatService
	Health      *observability.Health
	// Realtime serves the websocket upgrade. It authenticates on its own.
	Realtime       http.Handler
	AllowedOrigins []string
}

type Router struct {
	log         *slog.Logger
	auth        services.IAuthService
	memberships services.IMembershipService
	invitations services.IInvitationService
	chat        services.IChatService
	health      *observability.Health
}

// NewRouter builds the HTTP handler of the whole API.
func NewRouter(deps Deps) http.Handler {
	rt := &Router{
		log:         deps.Log,
		auth:        deps.Auth,
		memberships: deps.Memberships,
		invitations: deps.Invitations,
		chat:        deps.Chat,
		health:      deps.Health,
	}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	router.HandleFunc("/auth/nonce", rt.nonce).Methods(http.MethodPost)
	router.HandleFunc("/auth/verify", rt.verify).Methods(http.MethodPost)
	if deps.Realtime != nil {
		router.Handle("/ws", deps.Realtime).Methods(http.MethodGet)
	}

	api := router.NewRoute().Subrouter()
	api.Use(auth.Middleware(deps.Verifier, rt.writeError))

	api.HandleFunc("/rooms", rt.listRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms", rt.createRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/public", rt.listPublicRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/direct", rt.createDirectRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}", rt.getRoom).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", rt.deleteRoom).Methods(http.MethodDelete)
	api.HandleFunc("/rooms/{id}/join", rt.requestJoin).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/leave", rt.leave).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/members", rt.listMembers).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/members", rt.addMember).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/members/{userID}", rt.removeMember).Methods(http.MethodDelete)
	api.HandleFunc("/rooms/{id}/admin", rt.transferAdmin).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/requests", rt.listPending).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/requests/{userID}/approve", rt.approve).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/requests/{userID}/reject", rt.reject).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/invitations", rt.listRoomInvitations).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/invitations", rt.createInvitation).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/messages", rt.listMessages).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/messages/search", rt.searchMessages).Methods(http.MethodGet)
	api.HandleFunc("/invitations", rt.listMyInvitations).Methods(http.MethodGet)
	api.HandleFunc("/invitations/{id}/accept", rt.acceptInvitation).Methods(http.MethodPost)
	api.HandleFunc("/invitations/{id}/reject", rt.rejectInvitation).Methods(http.MethodPost)

	router.Use(handlers.ProxyHeaders)
	router.Use(rt.requestLogger)

	var handler http.Handler = router
	if len(deps.AllowedOrigins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(deps.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(handler)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{rt.log}))(handler)
}

func (rt *Router) requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.log.Info("endpoint hit", "method", r.Method, "path", r.URL.Path, "remote_host", r.RemoteAddr, "user_agent", r.UserAgent())
		h.ServeHTTP(w, r)
	})
}

type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.log.Error("Handler panic", "panic", v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps err to its status and a payload naming the failed precondition.
func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.log.Error("Request failed", "error", err)
	} else {
		rt.log.Debug("Request rejected", "error", err)
	}
	rt.writeJSON(w, status, errorResponse{Error: errors.Code(err), Message: errors.Message(err)})
}

func (rt *Router) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rt.log.Warn("Error while writing response", "error", err)
	}
}

func (rt *Router) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ErrInvalidPayload
	}
	return nil
}
