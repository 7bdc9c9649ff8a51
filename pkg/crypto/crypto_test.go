package crypto

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := "unit-test-key"
	plaintext := "imap secret"

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatalf("ciphertext must differ from plaintext")
	}

	decrypted, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Fatalf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	ciphertext, err := Encrypt("secret", "key-a")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt(ciphertext, "key-b"); err == nil {
		t.Fatalf("expected decryption failure with the wrong key")
	}
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	a, err := Encrypt("secret", "key")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	b, err := Encrypt("secret", "key")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if a == b {
		t.Fatalf("two encryptions of the same plaintext must differ")
	}
}
