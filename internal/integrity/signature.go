// Package integrity produces the per-attempt client signature stamped at
// join time and echoed back by the exam client on activity reports.
package integrity

import (
	"crypto/hmac"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Signer derives attempt signatures from a server-side secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign derives the signature for one attempt binding. The same inputs
// always produce the same signature, so the server can re-derive it
// instead of storing per-attempt key material.
func (s *Signer) Sign(sessionID string, userID int, originAddr string) string {
	h := sha3.New256()
	h.Write(s.secret)
	fmt.Fprintf(h, "|%s|%d|%s", sessionID, userID, originAddr)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a presented signature in constant time.
func (s *Signer) Verify(presented, sessionID string, userID int, originAddr string) bool {
	want := s.Sign(sessionID, userID, originAddr)
	return hmac.Equal([]byte(presented), []byte(want))
}
