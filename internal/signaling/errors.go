package signaling

import "errors"

var (
	// ErrDuplicateUser is returned when a (room, user) pair is already
	// registered. The existing connection is left untouched.
	ErrDuplicateUser = errors.New("signaling: user id already in room")

	ErrConnClosed    = errors.New("signaling: connection closed")
	ErrSendQueueFull = errors.New("signaling: send queue full")
)

// Close codes sent during handshake rejection. 4000-4999 is the range
// reserved for application use by RFC 6455.
const (
	CloseMissingParameter = 4000
	CloseInvalidToken     = 4001
	// CloseDuplicateUser is deliberately distinct from CloseInvalidToken;
	// earlier deployments reused 4001 for both, which left clients unable to
	// tell a credential problem from an identity collision.
	CloseDuplicateUser = 4002
)
