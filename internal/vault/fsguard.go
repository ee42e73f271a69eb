// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"os"
	"path/filepath"

	"github.com/jeranaias/secretsvault/internal/util"
)

const (
	dirMode     os.FileMode = 0o700
	keyfileMode os.FileMode = 0o400
	metaMode    os.FileMode = 0o600

	keyfileName = ".keyfile"
	metaName    = "meta.json"
	dbName      = "store.db"
)

// EnsureDirectory creates dirPath with mode 0700 if absent, then re-stats
// it and rejects a more permissive actual mode. Permission checks are
// skipped on Windows; see mode_windows.go.
func EnsureDirectory(dirPath string) error {
	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return &InitializationError{Reason: "creating storage directory", Cause: err}
	}
	if err := verifyMode(dirPath, dirMode); err != nil {
		return err
	}
	return nil
}

// EnsureKeyfile returns the 32 random bytes of the store's keyfile,
// creating it with mode 0400 on first use. An explicit chmod follows the
// write to defeat the process umask.
func EnsureKeyfile(dirPath string) ([]byte, error) {
	path := filepath.Join(dirPath, keyfileName)

	if _, err := os.Stat(path); err == nil {
		if verr := verifyMode(path, keyfileMode); verr != nil {
			return nil, verr
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &InitializationError{Reason: "reading keyfile", Cause: err}
		}
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, &InitializationError{Reason: "stating keyfile", Cause: err}
	}

	data, err := RandomBytes(SaltSize)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, keyfileMode); err != nil {
		return nil, &InitializationError{Reason: "writing keyfile", Cause: err}
	}
	if err := os.Chmod(path, keyfileMode); err != nil {
		return nil, &InitializationError{Reason: "setting keyfile mode", Cause: err}
	}
	return data, nil
}

// ReadMetaFile returns the raw contents of meta.json, or ("", false, nil)
// if the store has not been created yet.
func ReadMetaFile(dirPath string) (string, bool, error) {
	path := filepath.Join(dirPath, metaName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, &InitializationError{Reason: "reading meta.json", Cause: err}
	}
	return string(data), true, nil
}

// WriteMetaFile atomically rewrites meta.json with mode 0600.
func WriteMetaFile(dirPath, content string) error {
	path := filepath.Join(dirPath, metaName)
	if err := util.AtomicWriteFile(path, []byte(content), metaMode); err != nil {
		return &InitializationError{Reason: "writing meta.json", Cause: err}
	}
	return os.Chmod(path, metaMode)
}

// dbPath and metaPath are small path-joining helpers kept alongside the
// guard so callers never hand-roll the directory layout.
func dbPath(dirPath string) string   { return filepath.Join(dirPath, dbName) }
func metaPath(dirPath string) string { return filepath.Join(dirPath, metaName) }
