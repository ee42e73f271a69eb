// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP treats the value stored under name as a time-based one-time
// password seed and returns the current 6-digit code. The stored value
// may be either a bare base32 secret or a full otpauth:// URI, the same
// two forms an authenticator app accepts when you hand it a seed. It
// generates a code rather than validating one, the inverse of a typical
// login-time TOTP check.
func (e *Engine) TOTP(name string) (string, error) {
	value, found, err := e.Get(name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &KeyNotFoundError{Name: name}
	}

	secret := value
	if strings.HasPrefix(value, "otpauth://") {
		key, err := otp.NewKeyFromURL(value)
		if err != nil {
			return "", &DecryptionError{KeyHashPrefix: truncateHash(HMACHex(e.masterKey, []byte(name)), 16), Cause: err}
		}
		secret = key.Secret()
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", &DecryptionError{KeyHashPrefix: truncateHash(HMACHex(e.masterKey, []byte(name)), 16), Cause: err}
	}
	return code, nil
}
