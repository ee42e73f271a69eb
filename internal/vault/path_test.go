// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath_ExplicitAbsolute(t *testing.T) {
	abs := t.TempDir()
	got, err := ResolvePath(Options{Path: abs})
	require.NoError(t, err)
	require.Equal(t, abs, got)
}

func TestResolvePath_RejectsRelative(t *testing.T) {
	_, err := ResolvePath(Options{Path: "relative/path"})
	require.Error(t, err)
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
}

func TestResolvePath_XDGConfigHome(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	got, err := ResolvePath(Options{Location: LocationXDG})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, dirName), got)
}

func TestResolvePath_FallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	got, err := ResolvePath(Options{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".secrets-engine"), got)
}
