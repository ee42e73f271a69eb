// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLogger_LogAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger := newAuditLogger(dir)

	logger.Log("ROW_SKIPPED", map[string]string{"key_hash": "abc123", "reason": "decryption failed"})
	logger.Log("ROW_SKIPPED", map[string]string{"key_hash": "def456", "reason": "key_enc too short"})
	require.NoError(t, logger.Close())

	f, err := os.Open(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		var ev auditEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		require.NotEmpty(t, ev.ID)
		require.Equal(t, "ROW_SKIPPED", ev.EventType)
		lines++
	}
	require.Equal(t, 2, lines)
}

func TestRedactMetadata_DropsSensitiveKeys(t *testing.T) {
	out := redactMetadata(map[string]string{
		"name":     "openai.apiKey",
		"value":    "sk-abc123",
		"key_hash": "abc123",
	})
	require.Equal(t, "[REDACTED]", out["name"])
	require.Equal(t, "[REDACTED]", out["value"])
	require.Equal(t, "abc123", out["key_hash"])
}

func TestAuditLogger_Close_SafeWhenNeverOpened(t *testing.T) {
	logger := newAuditLogger(t.TempDir())
	require.NoError(t, logger.Close())
}
