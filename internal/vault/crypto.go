// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/scrypt"
)

// Fixed sizes and KDF parameters. These are on-disk-format constants, not
// tunables: changing any of them changes what a store produced under the
// previous values can no longer decrypt.
const (
	NonceSize = 12 // AES-GCM IV size
	KeySize   = 32 // AES-256 key size
	SaltSize  = 32
	TagSize   = 16 // AES-GCM authentication tag, appended to ciphertext

	scryptN      = 1 << 17 // 131072
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = KeySize
)

// ZeroBytes overwrites b with zeroes in place. Callers defer this over any
// buffer holding the master key or a derived secret to limit its lifetime
// in memory.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// DeriveMasterKey derives the 32-byte master key from the host's machine
// identity and keyfile bytes, salted per store. password = machineID ‖
// keyfile; the KDF is scrypt with N=2^17, r=8, p=1, which costs roughly
// 128 MiB of working memory per derivation.
func DeriveMasterKey(machineID, keyfile, salt []byte) ([]byte, error) {
	password := make([]byte, 0, len(machineID)+len(keyfile))
	password = append(password, machineID...)
	password = append(password, keyfile...)
	defer ZeroBytes(password)

	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, &InitializationError{Reason: "scrypt key derivation failed", Cause: err}
	}
	return key, nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("vault: reading random bytes: %w", err)
	}
	return b, nil
}

// initGCM builds an AES-256-GCM AEAD over key. Callers hold key only as
// long as needed and zero it afterward.
func initGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm mode: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under masterKey with a fresh random IV and empty
// associated data. Returns the IV and ciphertext‖tag separately, matching
// the row store's (iv, cipher) column pair.
func Encrypt(masterKey []byte, plaintext string) (iv, ciphertext []byte, err error) {
	gcm, err := initGCM(masterKey)
	if err != nil {
		return nil, nil, err
	}
	iv, err = RandomBytes(NonceSize)
	if err != nil {
		return nil, nil, err
	}
	ciphertext = gcm.Seal(nil, iv, []byte(plaintext), nil)
	return iv, ciphertext, nil
}

// Decrypt opens ciphertext (which includes the trailing auth tag) under
// masterKey and iv, returning the UTF-8 plaintext. keyHash is used only to
// enrich diagnostics on failure; the plaintext itself never appears in an
// error.
func Decrypt(masterKey, iv, ciphertext []byte, keyHash string) (string, error) {
	if len(iv) != NonceSize {
		return "", &DecryptionError{KeyHashPrefix: truncateHash(keyHash, 16), Cause: fmt.Errorf("invalid iv length %d", len(iv))}
	}
	if len(ciphertext) < TagSize {
		return "", &DecryptionError{KeyHashPrefix: truncateHash(keyHash, 16), Cause: fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext))}
	}
	gcm, err := initGCM(masterKey)
	if err != nil {
		return "", &DecryptionError{KeyHashPrefix: truncateHash(keyHash, 16), Cause: err}
	}
	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", &DecryptionError{KeyHashPrefix: truncateHash(keyHash, 16), Cause: err}
	}
	if !utf8.Valid(plaintext) {
		return "", &DecryptionError{KeyHashPrefix: truncateHash(keyHash, 16), Cause: fmt.Errorf("decrypted payload is not valid UTF-8")}
	}
	return string(plaintext), nil
}

// HMACHex computes HMAC-SHA256(masterKey, data) and returns it as 64
// lowercase hex characters. Used both for the blind key-name index and,
// in the integrity sealer, for the database seal.
func HMACHex(masterKey, data []byte) string {
	mac := hmac.New(sha256.New, masterKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// SHA256Sum hashes data and returns the 32-byte digest.
func SHA256Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}
