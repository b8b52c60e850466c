package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrAuth                  = fmt.Errorf("invalid or missing credentials")
	ErrNotAuthorizedAsHost   = fmt.Errorf("host authority not proven")
	ErrSessionNotFound       = fmt.Errorf("session not found")
	ErrSessionRetired        = fmt.Errorf("session retired")
	ErrSessionFull           = fmt.Errorf("session at capacity")
	ErrParticipantNotFound   = fmt.Errorf("participant not found")
	ErrParticipantBanned     = fmt.Errorf("participant kicked from session")
	ErrAuthorityRevoked      = fmt.Errorf("host authority revoked")
	ErrHostMuted             = fmt.Errorf("muted by host")
	ErrClassifierTimeout     = fmt.Errorf("classifier timed out")
	ErrClassifierUnavailable = fmt.Errorf("classifier unavailable")
	ErrDeliveryFailure       = fmt.Errorf("event delivery failed")
	ErrEscalationDelivery    = fmt.Errorf("escalation delivery failed")
	ErrWorkerPanic           = fmt.Errorf("worker panic")
	ErrEmptyLexicon          = fmt.Errorf("no lexicon entries have been found")
)

// Is re-exports errors.Is so callers need a single errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// WireCode maps an internal error onto the stable code sent back to the
// acting socket as {success:false, code, message}. Failures never reach the
// room broadcast.
func WireCode(err error) string {
	switch {
	case stderrors.Is(err, ErrAuth):
		return "AUTH_ERROR"
	case stderrors.Is(err, ErrNotAuthorizedAsHost):
		return "NOT_AUTHORIZED_AS_HOST"
	case stderrors.Is(err, ErrSessionNotFound), stderrors.Is(err, ErrSessionRetired):
		return "SESSION_NOT_FOUND"
	case stderrors.Is(err, ErrSessionFull):
		return "SESSION_FULL"
	case stderrors.Is(err, ErrParticipantNotFound):
		return "PARTICIPANT_NOT_FOUND"
	case stderrors.Is(err, ErrParticipantBanned):
		return "PARTICIPANT_BANNED"
	case stderrors.Is(err, ErrAuthorityRevoked):
		return "AUTHORITY_REVOKED"
	case stderrors.Is(err, ErrHostMuted):
		return "HOST_MUTED"
	default:
		return "INTERNAL"
	}
}
