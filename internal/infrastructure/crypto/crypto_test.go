package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New("test-secret", "test-salt")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	plaintext := "access-token-abc123"
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if got != plaintext {
		t.Errorf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	c, err := New("test-secret", "test-salt")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	a, err := c.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	b, err := c.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	c1, _ := New("secret-one", "salt")
	c2, _ := New("secret-two", "salt")

	ciphertext, err := c1.Encrypt("credential")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	if _, err := c2.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt with wrong key succeeded, want error")
	}
}

func TestDecryptInvalidInput(t *testing.T) {
	c, _ := New("secret", "salt")

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "not-valid-base64!!!"},
		{"too short", "YWJj"},
		{"tampered", ""},
	}

	tampered, _ := c.Encrypt("credential")
	tests[2].input = tampered[:len(tampered)-4] + "AAAA"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decrypt(tt.input); err == nil {
				t.Errorf("Decrypt(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestNewRejectsEmptyConfig(t *testing.T) {
	if _, err := New("", "salt"); err == nil || !strings.Contains(err.Error(), "secret") {
		t.Errorf("New with empty secret: got %v, want secret error", err)
	}
	if _, err := New("secret", ""); err == nil || !strings.Contains(err.Error(), "salt") {
		t.Errorf("New with empty salt: got %v, want salt error", err)
	}
}
