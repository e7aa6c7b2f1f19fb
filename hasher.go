package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// hashIterations is fixed; changing it invalidates every stored digest.
	hashIterations = 10000
	hashKeyLength  = 32

	opaqueTokenBytes = 32
)

// Hasher derives password digests and per-principal salts. Hash is a pure,
// deterministic one-way transform: equal (secret, salt) pairs always produce
// equal digests.
type Hasher struct {
	iterations int
}

// NewHasher returns a Hasher with the default work factor.
func NewHasher() Hasher {
	return Hasher{iterations: hashIterations}
}

// Hash derives a hex-encoded digest from the secret and salt.
func (h Hasher) Hash(secret, salt string) string {
	iterations := h.iterations
	if iterations <= 0 {
		iterations = hashIterations
	}
	key := pbkdf2.Key([]byte(secret), []byte(salt), iterations, hashKeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// Verify compares a candidate secret against a stored digest in constant time.
func (h Hasher) Verify(secret, salt, digest string) bool {
	derived := h.Hash(secret, salt)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(digest)) == 1
}

// NewSalt derives a salt from a creation time and a context string such as the
// principal's email. The salt carries no secret material; it only has to be
// unique enough that two principals never share one.
func (h Hasher) NewSalt(at time.Time, context string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "--%s--%s--", at.UTC().Format(time.RFC3339Nano), context))
	return hex.EncodeToString(sum[:])
}

// NewOpaqueToken returns an unguessable hex-encoded bearer value used for
// activation codes, recognition tokens, and remember tokens.
func NewOpaqueToken() string {
	buf := make([]byte, opaqueTokenBytes)
	// crypto/rand.Read is documented to never fail.
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
