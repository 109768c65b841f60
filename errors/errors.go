package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Every error returned by the services unwraps to exactly one of them.
var (
	ErrNotFound        = fmt.Errorf("not found")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrConflict        = fmt.Errorf("conflict")
	ErrInvalid         = fmt.Errorf("invalid")
	ErrStoreFailure    = fmt.Errorf("store failure")
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrRoomNotFound          = precondition(ErrNotFound, "room not found")
	ErrUserNotFound          = precondition(ErrNotFound, "user not found")
	ErrMembershipNotFound    = precondition(ErrNotFound, "no active membership in room")
	ErrNoPendingRequest      = precondition(ErrNotFound, "no pending join request")
	ErrInvitationNotFound    = precondition(ErrNotFound, "invitation not found")
	ErrInvitationExpired     = precondition(ErrNotFound, "invitation expired")
	ErrMessageNotFound       = precondition(ErrNotFound, "message not found")
	ErrNotMember             = precondition(ErrForbidden, "not an approved member of the room")
	ErrNotAdmin              = precondition(ErrForbidden, "not an admin of the room")
	ErrNotInvitee            = precondition(ErrForbidden, "invitation belongs to another wallet")
	ErrRoomNotPublic         = precondition(ErrForbidden, "room does not accept join requests")
	ErrRoomNotPrivate        = precondition(ErrForbidden, "invitations are only for private rooms")
	ErrDirectRoomFixed       = precondition(ErrForbidden, "direct room membership cannot change")
	ErrAlreadyMember         = precondition(ErrConflict, "already a member")
	ErrAlreadyPending        = precondition(ErrConflict, "join request already pending")
	ErrInvitationPending     = precondition(ErrConflict, "a pending invitation already exists")
	ErrInvitationResolved    = precondition(ErrConflict, "invitation already resolved")
	ErrConcurrentUpdate      = precondition(ErrConflict, "concurrent update, retry")
	ErrCannotRemoveSelf      = precondition(ErrInvalid, "admin cannot remove self")
	ErrInvalidWallet         = precondition(ErrInvalid, "invalid wallet address")
	ErrInvalidRoomType       = precondition(ErrInvalid, "invalid room type")
	ErrEmptyContent          = precondition(ErrInvalid, "message content is empty")
	ErrContentTooLong        = precondition(ErrInvalid, "message content is too long")
	ErrInvalidPayload        = precondition(ErrInvalid, "invalid event payload")
	ErrUnknownEvent          = precondition(ErrInvalid, "unknown event type")
	ErrSelfDirectRoom        = precondition(ErrInvalid, "cannot open a direct room with yourself")
	ErrInvalidToken          = precondition(ErrUnauthenticated, "invalid or expired token")
	ErrInvalidSignature      = precondition(ErrUnauthenticated, "invalid wallet signature")
	ErrNonceNotFound         = precondition(ErrUnauthenticated, "nonce missing or expired")
	ErrTokenGeneration       = fmt.Errorf("token generation failed")
	ErrSinkFull              = fmt.Errorf("sink buffer full")
	ErrMembershipChangesLost = fmt.Errorf("membership change dropped")
)

// Precondition is a named failed precondition classified under a kind.
type Precondition struct {
	kind error
	msg  string
}

func precondition(kind error, msg string) *Precondition {
	return &Precondition{kind: kind, msg: msg}
}

func (p *Precondition) Error() string { return p.msg }

func (p *Precondition) Unwrap() error { return p.kind }

// StoreFailure marks err as an underlying persistence error.
func StoreFailure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}

// Kind returns the kind err belongs to, or nil when it is unclassified.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrInvalid, ErrUnauthenticated, ErrStoreFailure} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsClassified reports whether err already belongs to one of the kinds.
func IsClassified(err error) bool {
	return Kind(err) != nil
}

// Code returns the machine readable code sent to REST and realtime callers.
func Code(err error) string {
	switch Kind(err) {
	case ErrNotFound:
		return "not_found"
	case ErrForbidden:
		return "forbidden"
	case ErrConflict:
		return "conflict"
	case ErrInvalid:
		return "invalid"
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrStoreFailure:
		return "store_failure"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the REST status code.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrInvalid:
		return http.StatusBadRequest
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing text of err. Store failures are not detailed.
func Message(err error) string {
	var p *Precondition
	switch {
	case errors.As(err, &p):
		return p.msg
	case errors.Is(err, ErrStoreFailure):
		return ErrStoreFailure.Error()
	case IsClassified(err):
		return err.Error()
	default:
		return "internal error"
	}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
