package auth

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := hashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the plain password")
	}
	if !passwordMatches(hash, "s3cret-pass") {
		t.Error("correct password rejected")
	}
	if passwordMatches(hash, "wrong-pass") {
		t.Error("wrong password accepted")
	}
}

func TestPasswordMatchesGarbageHash(t *testing.T) {
	if passwordMatches("not-a-bcrypt-hash", "anything") {
		t.Error("garbage hash must never match")
	}
}
