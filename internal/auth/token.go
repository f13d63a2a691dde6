// Package auth implements the shared-secret token scheme used during the
// signaling handshake.
//
// A token is derived from (roomId, userId, secret) alone; anyone who knows
// all three can mint a valid token, and tokens never expire. This is an
// operator-controlled trust model: the secret is expected to be rotated
// out-of-band, not treated as a per-user credential.
package auth

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Token derives the expected token for a (room, user, secret) triple: the
// hex-encoded md5 digest of "<roomId>-<userId>-<secret>".
func Token(roomID, userID, secret string) string {
	sum := md5.Sum([]byte(roomID + "-" + userID + "-" + secret))
	return hex.EncodeToString(sum[:])
}

// Validate checks a client-supplied token. An empty secret disables
// authentication entirely and accepts any token, including none.
func Validate(roomID, userID, token, secret string) error {
	if secret == "" {
		return nil
	}
	if token == "" {
		return ErrMissingToken
	}
	expected := Token(roomID, userID, secret)
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return ErrInvalidToken
	}
	return nil
}
