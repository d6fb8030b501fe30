package service

import (
	"errors"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	apperrors "github.com/wikimesh/ssohub/internal/errors"
	"github.com/wikimesh/ssohub/internal/ports"
)

// ProtocolError is a handshake step failing closed: wrong domain role,
// missing or consumed token, identity mismatch. It carries the short
// machine-readable status surfaced to the client and is never retried.
type ProtocolError struct {
	Status sso.Status
}

func (e *ProtocolError) Error() string { return string(e.Status) }

// Protocol creates a ProtocolError for the given status.
func Protocol(status sso.Status) *ProtocolError {
	return &ProtocolError{Status: status}
}

// StatusOf derives the wire status for an error. Protocol errors carry their
// own status; consumed/expired store entries surface as a lost session; fatal
// inconsistencies and everything else collapse to generic failures so internal
// detail never leaks into a header.
func StatusOf(err error) sso.Status {
	if err == nil {
		return sso.StatusOK
	}

	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Status
	}
	if errors.Is(err, ports.ErrNotFound) {
		return sso.StatusLostSession
	}
	if apperrors.IsFatalInconsistency(err) {
		return sso.StatusInconsistency
	}
	return sso.StatusInternalError
}
