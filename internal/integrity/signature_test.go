package integrity

import "testing"

func TestSignDeterministic(t *testing.T) {
	s := NewSigner("secret")
	a := s.Sign("session-1", 42, "10.0.0.1")
	b := s.Sign("session-1", 42, "10.0.0.1")
	if a != b {
		t.Fatal("same inputs must produce the same signature")
	}
	if len(a) != 64 {
		t.Fatalf("signature length = %d, want 64 hex chars", len(a))
	}
}

func TestVerify(t *testing.T) {
	s := NewSigner("secret")
	sig := s.Sign("session-1", 42, "10.0.0.1")

	if !s.Verify(sig, "session-1", 42, "10.0.0.1") {
		t.Fatal("valid signature rejected")
	}
	if s.Verify(sig, "session-2", 42, "10.0.0.1") {
		t.Fatal("signature accepted for a different session")
	}
	if s.Verify(sig, "session-1", 43, "10.0.0.1") {
		t.Fatal("signature accepted for a different user")
	}
	if NewSigner("other").Verify(sig, "session-1", 42, "10.0.0.1") {
		t.Fatal("signature accepted under a different secret")
	}
}
