// Package turnrest issues short-lived TURN credentials using the coturn
// "TURN REST API" scheme, so signaling clients can reach a TURN server that
// shares a secret with this relay without any per-user provisioning.
//
// Algorithm (coturn-compatible):
//
//	username   = <unix_expiry>:<prefix>:<user_id>
//	credential = base64(hmac_sha1(shared_secret, username))
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const usernamePrefix = "relay"

type Credentials struct {
	Username   string `json:"username"`
	Credential string `json:"credential"`
	ExpiresAt  int64  `json:"expiresAt"`
}

type Generator struct {
	secret []byte
	ttl    time.Duration

	now      func() time.Time
	randomID func() (string, error)
}

func NewGenerator(secret string, ttl time.Duration) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("TURN shared secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("TURN credential TTL must be positive")
	}
	return &Generator{
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		randomID: randomID,
	}, nil
}

// Credentials mints a credential pair scoped to userID. An empty userID gets
// a random session id instead, since the TURN server only cares that the
// username is well formed and unexpired.
func (g *Generator) Credentials(userID string) (Credentials, error) {
	if userID == "" {
		id, err := g.randomID()
		if err != nil {
			return Credentials{}, err
		}
		userID = id
	}
	if strings.Contains(userID, ":") {
		return Credentials{}, errors.New("user id must not contain ':'")
	}

	expiry := g.now().UTC().Add(g.ttl).Unix()
	username := fmt.Sprintf("%d:%s:%s", expiry, usernamePrefix, userID)

	mac := hmac.New(sha1.New, g.secret)
	mac.Write([]byte(username))

	return Credentials{
		Username:   username,
		Credential: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		ExpiresAt:  expiry,
	}, nil
}

// TTL reports the configured credential lifetime.
func (g *Generator) TTL() time.Duration {
	return g.ttl
}

func randomID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
