// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"os"
)

// metaVersion is the only format version this implementation understands.
const metaVersion = "1"

// metaDocument is the on-disk shape of meta.json: a format version tag,
// the hex-encoded KDF salt, and the hex-encoded integrity seal.
type metaDocument struct {
	Version   string `json:"version"`
	Salt      string `json:"salt"`
	Integrity string `json:"integrity"`
}

// sealer computes and verifies the HMAC-SHA256(master_key,
// SHA256(file_bytes(store.db))) seal recorded in meta.json, and owns an
// asymmetric checkpoint discipline: writes reseal without forcing a WAL
// checkpoint, while verify and close both checkpoint first so the hashed
// bytes always match the main database file.
type sealer struct {
	dirPath   string
	masterKey []byte
	store     *RowStore
}

func newSealer(dirPath string, masterKey []byte, store *RowStore) *sealer {
	return &sealer{dirPath: dirPath, masterKey: masterKey, store: store}
}

// computeSeal hashes the current on-disk bytes of store.db and HMACs that
// digest under the master key, without touching the WAL.
func (s *sealer) computeSeal() (string, error) {
	data, err := os.ReadFile(s.store.FilePath())
	if err != nil {
		return "", &IntegrityError{Reason: "reading database file", Cause: err}
	}
	digest := SHA256Sum(data)
	return HMACHex(s.masterKey, digest[:]), nil
}

// Update recomputes the seal over the database file's current bytes
// (without checkpointing) and rewrites meta.json, preserving salt.
func (s *sealer) Update(salt string) error {
	seal, err := s.computeSeal()
	if err != nil {
		return err
	}
	doc := metaDocument{Version: metaVersion, Salt: salt, Integrity: seal}
	return writeMetaDocument(s.dirPath, doc)
}

// UpdateAfterCheckpoint checkpoints the WAL first, then seals — used on
// close, so the seal matches the main file regardless of WAL state.
func (s *sealer) UpdateAfterCheckpoint(salt string) error {
	if err := s.store.Checkpoint(); err != nil {
		return &IntegrityError{Reason: "checkpoint before seal", Cause: err}
	}
	return s.Update(salt)
}

// Verify is called only when a meta file already exists. It checkpoints
// the WAL first (critical: stale WAL data would make the computed hash
// diverge from the sealed one), then compares the recomputed seal to
// meta.integrity in constant time.
func (s *sealer) Verify() (salt string, err error) {
	raw, present, err := ReadMetaFile(s.dirPath)
	if err != nil {
		return "", err
	}
	if !present {
		return "", &IntegrityError{Reason: "metadata file missing"}
	}

	var doc metaDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", &IntegrityError{Reason: "metadata file corrupted", Cause: err}
	}
	if doc.Version != metaVersion {
		return "", &IntegrityError{Reason: "metadata version mismatch: expected " + metaVersion + ", found " + doc.Version}
	}

	if err := s.store.Checkpoint(); err != nil {
		return "", &IntegrityError{Reason: "checkpoint failed", Cause: err}
	}

	seal, err := s.computeSeal()
	if err != nil {
		return "", err
	}

	wantBytes, err1 := hex.DecodeString(doc.Integrity)
	gotBytes, err2 := hex.DecodeString(seal)
	if err1 != nil || err2 != nil || !hmac.Equal(wantBytes, gotBytes) {
		return "", &IntegrityError{Reason: "integrity seal mismatch"}
	}

	return doc.Salt, nil
}

func writeMetaDocument(dirPath string, doc metaDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &IntegrityError{Reason: "marshaling meta.json", Cause: err}
	}
	return WriteMetaFile(dirPath, string(data))
}

// readExistingSalt reads meta.json (if present) and returns its salt, or
// ("", false, nil) if the store is brand new. A present-but-unparseable
// meta file is a hard integrity error even before derivation: an engine
// should never silently treat a corrupted store as new.
func readExistingSalt(dirPath string) (salt string, exists bool, err error) {
	raw, present, err := ReadMetaFile(dirPath)
	if err != nil {
		return "", false, err
	}
	if !present {
		return "", false, nil
	}
	var doc metaDocument
	if jsonErr := json.Unmarshal([]byte(raw), &doc); jsonErr != nil {
		return "", false, &IntegrityError{Reason: "metadata file corrupted", Cause: jsonErr}
	}
	if doc.Salt == "" {
		return "", false, &IntegrityError{Reason: "metadata file missing salt"}
	}
	return doc.Salt, true, nil
}
