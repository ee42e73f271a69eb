// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func TestEngine_TOTP_BareSecret(t *testing.T) {
	e, _ := openTestEngine(t)
	require.NoError(t, e.Set("github.totp", "JBSWY3DPEHPK3PXP"))

	code, err := e.TOTP("github.totp")
	require.NoError(t, err)
	require.Regexp(t, sixDigits, code)
}

func TestEngine_TOTP_OtpauthURI(t *testing.T) {
	e, _ := openTestEngine(t)
	uri := "otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example"
	require.NoError(t, e.Set("example.totp", uri))

	code, err := e.TOTP("example.totp")
	require.NoError(t, err)
	require.Regexp(t, sixDigits, code)
}

func TestEngine_TOTP_MissingKey(t *testing.T) {
	e, _ := openTestEngine(t)
	_, err := e.TOTP("nothing.here")
	require.Error(t, err)
	var notFound *KeyNotFoundError
	require.ErrorAs(t, err, &notFound)
}
