// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"encoding/hex"
	"os"
	"sort"
	"sync"
	"time"
)

// Options configures Open. Path, if set, must be an absolute directory
// and wins outright; otherwise Location selects a resolution policy.
// The zero value resolves to $XDG_CONFIG_HOME/secrets-engine when that
// variable is set (POSIX only), else to $HOME/.secrets-engine.
type Options struct {
	Path     string
	Location Location
}

// Engine is one open vault: it owns the master key, the row store, the
// integrity sealer, and the in-memory name index that backs Keys/Has/
// Size without touching disk. An Engine is not safe for concurrent use
// from multiple goroutines beyond the close-guard below.
type Engine struct {
	mu        sync.Mutex
	dirPath   string
	masterKey []byte
	salt      string
	nameIndex map[string]string // key_hash -> plaintext name
	store     *RowStore
	seal      *sealer
	audit     *auditLogger
	closed    bool
}

// Open resolves the storage directory, stands up (or loads) the on-disk
// store, verifies its integrity seal if it already existed, and builds
// the in-memory name index.
func Open(opts Options) (*Engine, error) {
	dirPath, err := ResolvePath(opts)
	if err != nil {
		return nil, err
	}

	if err := EnsureDirectory(dirPath); err != nil {
		return nil, err
	}
	keyfile, err := EnsureKeyfile(dirPath)
	if err != nil {
		return nil, err
	}

	saltHex, existed, err := readExistingSalt(dirPath)
	if err != nil {
		return nil, err
	}

	var saltBytes []byte
	if existed {
		saltBytes, err = hex.DecodeString(saltHex)
		if err != nil {
			return nil, &IntegrityError{Reason: "metadata salt is not valid hex", Cause: err}
		}
	} else {
		saltBytes, err = RandomBytes(SaltSize)
		if err != nil {
			return nil, err
		}
		saltHex = hex.EncodeToString(saltBytes)
	}

	machineID, err := MachineIdentity()
	if err != nil {
		return nil, err
	}

	masterKey, err := DeriveMasterKey([]byte(machineID), keyfile, saltBytes)
	if err != nil {
		return nil, err
	}

	store, err := OpenRowStore(dbPath(dirPath))
	if err != nil {
		ZeroBytes(masterKey)
		return nil, err
	}

	seal := newSealer(dirPath, masterKey, store)

	if existed {
		if _, err := seal.Verify(); err != nil {
			store.Close()
			ZeroBytes(masterKey)
			return nil, err
		}
	}

	audit := newAuditLogger(dirPath)

	nameIndex, err := buildNameIndex(store, masterKey, audit)
	if err != nil {
		store.Close()
		ZeroBytes(masterKey)
		return nil, err
	}

	if !existed {
		// The schema DDL (applied inside OpenRowStore) runs first, and
		// the initial seal is only written once the (empty) name index
		// has been built, so a failure partway through index build never
		// leaves a sealed store with unindexed rows.
		if err := seal.Update(saltHex); err != nil {
			store.Close()
			ZeroBytes(masterKey)
			return nil, err
		}
	}

	return &Engine{
		dirPath:   dirPath,
		masterKey: masterKey,
		salt:      saltHex,
		nameIndex: nameIndex,
		store:     store,
		seal:      seal,
		audit:     audit,
	}, nil
}

// buildNameIndex decrypts every row's key_enc (12-byte IV prefix ‖
// ciphertext) to recover its plaintext name. A single row whose
// decryption fails is logged and skipped, not fatal: the row stays in
// the database but is invisible to Keys/Has/Size until it can be
// decrypted again (e.g. after a key recovery), rather than being
// destroyed on a guess that it's merely corrupt.
func buildNameIndex(store *RowStore, masterKey []byte, audit *auditLogger) (map[string]string, error) {
	rows, err := store.FindAll()
	if err != nil {
		return nil, err
	}

	idx := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row.KeyEnc) < NonceSize {
			audit.Log("ROW_SKIPPED", map[string]string{"key_hash": truncateHash(row.KeyHash, 16), "reason": "key_enc too short"})
			continue
		}
		iv := row.KeyEnc[:NonceSize]
		ct := row.KeyEnc[NonceSize:]
		name, err := Decrypt(masterKey, iv, ct, row.KeyHash)
		if err != nil {
			audit.Log("ROW_SKIPPED", map[string]string{"key_hash": truncateHash(row.KeyHash, 16), "reason": "decryption failed"})
			continue
		}
		idx[row.KeyHash] = name
	}
	return idx, nil
}

func (e *Engine) guard() error {
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Get returns the plaintext value for name, and false if no such entry
// exists.
func (e *Engine) Get(name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return "", false, err
	}

	keyHash := HMACHex(e.masterKey, []byte(name))
	row, err := e.store.FindByHash(keyHash)
	if err != nil {
		return "", false, err
	}
	if row == nil {
		return "", false, nil
	}
	value, err := Decrypt(e.masterKey, row.IV, row.Cipher, keyHash)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// GetOrThrow is Get, raising KeyNotFoundError instead of returning false.
func (e *Engine) GetOrThrow(name string) (string, error) {
	value, found, err := e.Get(name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &KeyNotFoundError{Name: name}
	}
	return value, nil
}

// Set encrypts and upserts name/value, then reseals (without
// checkpointing).
func (e *Engine) Set(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}

	keyHash := HMACHex(e.masterKey, []byte(name))

	ivK, ctK, err := Encrypt(e.masterKey, name)
	if err != nil {
		return err
	}
	ivV, ctV, err := Encrypt(e.masterKey, value)
	if err != nil {
		return err
	}
	keyEnc := append(append([]byte{}, ivK...), ctK...)

	if err := e.store.Upsert(keyHash, keyEnc, ivV, ctV); err != nil {
		return err
	}

	e.nameIndex[keyHash] = name
	return e.seal.Update(e.salt)
}

// Has reports whether name exists, using only the in-memory index — no
// row fetch, no decryption, no I/O.
func (e *Engine) Has(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return false, err
	}
	keyHash := HMACHex(e.masterKey, []byte(name))
	_, ok := e.nameIndex[keyHash]
	return ok, nil
}

// Delete removes name if present, reporting whether anything was
// removed, and reseals (without checkpointing) if so.
func (e *Engine) Delete(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return false, err
	}

	keyHash := HMACHex(e.masterKey, []byte(name))
	removed, err := e.store.DeleteByHash(keyHash)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	delete(e.nameIndex, keyHash)
	if err := e.seal.Update(e.salt); err != nil {
		return true, err
	}
	return true, nil
}

// Keys returns the sorted (code-point order) list of names, optionally
// filtered through the glob matcher (see pattern.go).
func (e *Engine) Keys(pattern string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(e.nameIndex))
	for _, n := range e.nameIndex {
		names = append(names, n)
	}
	if pattern != "" {
		names = filterNames(names, pattern)
	}
	sort.Strings(names)
	return names, nil
}

// Size returns the number of entries.
func (e *Engine) Size() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return 0, err
	}
	return len(e.nameIndex), nil
}

// StoragePath returns the resolved storage directory. Callable after
// Close.
func (e *Engine) StoragePath() string {
	return e.dirPath
}

// Close checkpoints the WAL, seals over the now-checkpointed main file,
// closes the row store, and clears in-memory state. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	err := e.seal.UpdateAfterCheckpoint(e.salt)
	closeErr := e.store.Close()
	if err == nil {
		err = closeErr
	}

	e.audit.Close()
	ZeroBytes(e.masterKey)
	e.nameIndex = nil
	e.closed = true
	return err
}

// destroyRetries bounds the directory removal below: up to 5 attempts,
// sleeping 200ms × attempt after each failed one, the last included.
// Every removal error is retried, not only busy or permission errors.
const destroyRetries = 5

// Destroy checkpoints, closes the row store, clears the index, pauses
// briefly to let the OS release lingering WAL/SHM handles, then removes
// the entire storage directory, retrying failed removals as above.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if !e.closed {
		e.store.Checkpoint()
		e.audit.Close()
		e.store.Close()
		ZeroBytes(e.masterKey)
		e.nameIndex = nil
		e.closed = true
	}
	dirPath := e.dirPath
	e.mu.Unlock()

	time.Sleep(150 * time.Millisecond)

	var lastErr error
	for attempt := 1; attempt <= destroyRetries; attempt++ {
		lastErr = os.RemoveAll(dirPath)
		if lastErr == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	return &InitializationError{Reason: "destroying storage directory after retries", Cause: lastErr}
}
