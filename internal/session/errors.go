package session

import "errors"

// Reasons a credential does not resolve. Resolve reports them as a plain
// negative result and only logs the reason.
var (
	ErrSessionNotFound = errors.New("session: no active session for credential")
	ErrSessionExpired  = errors.New("session: expired")
)
