package security

import "testing"

func TestHashToken_Consistent(t *testing.T) {
	token := "a1b2c3d4"
	if HashToken(token) != HashToken(token) {
		t.Error("HashToken should be deterministic")
	}
	if len(HashToken(token)) != 64 {
		t.Errorf("hash length = %d, want 64", len(HashToken(token)))
	}
}

func TestHashToken_DifferentTokens(t *testing.T) {
	if HashToken("token-a") == HashToken("token-b") {
		t.Error("different tokens should produce different hashes")
	}
}

func TestHashToken_KnownVector(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashToken("abc"); got != want {
		t.Errorf("HashToken(abc) = %s, want %s", got, want)
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("secret-token")
	if !TokenHashEqual("secret-token", stored) {
		t.Error("TokenHashEqual should match the original token")
	}
	if TokenHashEqual("secret-tokem", stored) {
		t.Error("TokenHashEqual should reject a different token")
	}
	if TokenHashEqual("secret-token", stored[:10]) {
		t.Error("TokenHashEqual should reject a truncated hash")
	}
	if TokenHashEqual("", "") {
		t.Error("empty token hash should not equal empty string")
	}
}
