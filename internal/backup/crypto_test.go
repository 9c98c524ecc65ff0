package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// encryptFixture writes content to a source file, encrypts it, and returns
// the three paths plus the salt used.
func encryptFixture(t *testing.T, content []byte, passphrase string) (srcPath, encPath, decPath string, salt []byte) {
	t.Helper()
	dir := t.TempDir()
	srcPath = filepath.Join(dir, "source.db")
	encPath = filepath.Join(dir, "source.db.enc")
	decPath = filepath.Join(dir, "restored.db")

	if err := os.WriteFile(srcPath, content, 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if err := EncryptFile(srcPath, encPath, passphrase, salt); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return srcPath, encPath, decPath, salt
}

func TestGenerateSaltUnique(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("household passphrase", salt)
	key2 := DeriveKey("household passphrase", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}

	other := DeriveKey("different passphrase", salt)
	if bytes.Equal(key1, other) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte("quests, rewards, and a point ledger worth keeping")
	_, encPath, decPath, salt := encryptFixture(t, original, "test-passphrase-123")

	encrypted, _ := os.ReadFile(encPath)
	if bytes.Equal(encrypted, original) {
		t.Error("encrypted content should differ from original")
	}
	if !bytes.Equal(encrypted[:saltSize], salt) {
		t.Error("encrypted file should start with salt")
	}

	if err := DecryptFile(encPath, decPath, "test-passphrase-123"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	decrypted, _ := os.ReadFile(decPath)
	if !bytes.Equal(original, decrypted) {
		t.Error("decrypted content should match original")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	_, encPath, decPath, _ := encryptFixture(t, []byte("secret data"), "correct-password")

	if err := DecryptFile(encPath, decPath, "wrong-password"); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	_, encPath, decPath, _ := encryptFixture(t, []byte("secret data"), "password")

	// Flip a ciphertext byte past the salt and nonce header.
	data, _ := os.ReadFile(encPath)
	data[saltSize+nonceSize+1] ^= 0xFF
	os.WriteFile(encPath, data, 0600)

	if err := DecryptFile(encPath, decPath, "password"); err == nil {
		t.Fatal("expected error with tampered ciphertext")
	}
}

func TestEncryptDecryptEmptyFile(t *testing.T) {
	_, encPath, decPath, _ := encryptFixture(t, []byte{}, "password")

	if err := DecryptFile(encPath, decPath, "password"); err != nil {
		t.Fatalf("decrypt empty file: %v", err)
	}
	decrypted, _ := os.ReadFile(decPath)
	if len(decrypted) != 0 {
		t.Errorf("expected empty decrypted file, got %d bytes", len(decrypted))
	}
}

func TestDecryptFileTooSmall(t *testing.T) {
	dir := t.TempDir()
	encPath := filepath.Join(dir, "small.db.enc")

	os.WriteFile(encPath, []byte("too short"), 0600)

	if err := DecryptFile(encPath, filepath.Join(dir, "out.db"), "password"); err == nil {
		t.Fatal("expected error with file too small")
	}
}
