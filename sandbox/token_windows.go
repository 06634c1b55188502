// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modAdvapi32               = windows.NewLazySystemDLL("advapi32.dll")
	procCreateRestrictedToken = modAdvapi32.NewProc("CreateRestrictedToken")
)

const disableMaxPrivilege = 0x1

// disabledGroups are the privileged built-in groups turned into
// deny-only SIDs in the child's token.
var disabledGroups = []windows.WELL_KNOWN_SID_TYPE{
	windows.WinBuiltinAdministratorsSid,
	windows.WinBuiltinPowerUsersSid,
	windows.WinBuiltinBackupOperatorsSid,
	windows.WinBuiltinAccountOperatorsSid,
	windows.WinBuiltinPrintOperatorsSid,
	windows.WinBuiltinNetworkConfigurationOperatorsSid,
	windows.WinBuiltinRemoteDesktopUsersSid,
}

// restrictedToken derives a primary token from the current process
// token with every privilege except SeChangeNotifyPrivilege removed and
// the privileged built-in groups disabled.
func restrictedToken() (windows.Token, error) {
	var current windows.Token
	access := uint32(windows.TOKEN_DUPLICATE | windows.TOKEN_QUERY | windows.TOKEN_ASSIGN_PRIMARY | windows.TOKEN_ADJUST_DEFAULT)
	if err := windows.OpenProcessToken(windows.CurrentProcess(), access, &current); err != nil {
		return 0, fmt.Errorf("opening process token: %w", err)
	}
	defer current.Close()

	disabled := make([]windows.SIDAndAttributes, 0, len(disabledGroups))
	for _, group := range disabledGroups {
		sid, err := windows.CreateWellKnownSid(group)
		if err != nil {
			return 0, fmt.Errorf("creating well-known SID %d: %w", group, err)
		}
		disabled = append(disabled, windows.SIDAndAttributes{Sid: sid})
	}

	var restricted windows.Token
	r1, _, err := procCreateRestrictedToken.Call(
		uintptr(current),
		disableMaxPrivilege,
		uintptr(len(disabled)),
		uintptr(unsafe.Pointer(&disabled[0])),
		0, 0,
		0, 0,
		uintptr(unsafe.Pointer(&restricted)),
	)
	if r1 == 0 {
		return 0, fmt.Errorf("CreateRestrictedToken: %w", err)
	}
	return restricted, nil
}
