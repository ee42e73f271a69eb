// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"fmt"
	"net"
	"os"
	"os/user"
)

const noMACAvailable = "no-mac-available"

// MachineIdentity returns a string stable across process invocations on
// the same host: hostname + ":" + primary MAC + ":" + username. It is not
// a secret; it is one of the two inputs folded into the scrypt password
// that the master key is derived from (the other being the keyfile).
func MachineIdentity() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", &InitializationError{Reason: "reading hostname", Cause: err}
	}

	username := currentUsername()

	mac, err := primaryMAC()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s:%s:%s", hostname, mac, username), nil
}

// currentUsername resolves the OS username, falling back to the USER/
// USERNAME environment variables if the user package can't look it up
// (notably inside some minimal containers without an nsswitch entry).
func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	if v := os.Getenv("USERNAME"); v != "" {
		return v
	}
	return "unknown"
}

// primaryMAC returns the hardware address of the first non-loopback,
// non-internal interface whose MAC is not all zeroes, or noMACAvailable
// if none qualifies.
func primaryMAC() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", &InitializationError{Reason: "enumerating network interfaces", Cause: err}
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		if isAllZero(iface.HardwareAddr) {
			continue
		}
		return iface.HardwareAddr.String(), nil
	}
	return noMACAvailable, nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
