// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package sandbox

import (
	"errors"
	"fmt"
	"strconv"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modUserenv                    = windows.NewLazySystemDLL("userenv.dll")
	procCreateAppContainerProfile = modUserenv.NewProc("CreateAppContainerProfile")
	procDeleteAppContainerProfile = modUserenv.NewProc("DeleteAppContainerProfile")
	procGetAppContainerFolderPath = modUserenv.NewProc("GetAppContainerFolderPath")
)

// appContainerName is the profile name prefix. A numeric suffix is
// added when a profile with the name already exists.
const appContainerName = "grackle-zero"

const maxAppContainerAttempts = 100

// hresultAlreadyExists is HRESULT_FROM_WIN32(ERROR_ALREADY_EXISTS).
const hresultAlreadyExists = 0x800700B7

// procThreadAttributeSecurityCapabilities is
// PROC_THREAD_ATTRIBUTE_SECURITY_CAPABILITIES.
const procThreadAttributeSecurityCapabilities = 0x00020009

// securityCapabilities mirrors SECURITY_CAPABILITIES.
type securityCapabilities struct {
	AppContainerSid *windows.SID
	Capabilities    *windows.SIDAndAttributes
	CapabilityCount uint32
	Reserved        uint32
}

// appContainer is a freshly created AppContainer profile with no
// capabilities: no network, no user files, no devices.
type appContainer struct {
	name   string
	sid    *windows.SID
	folder string
}

func createAppContainer() (*appContainer, error) {
	for attempt := 0; attempt < maxAppContainerAttempts; attempt++ {
		name := appContainerName
		if attempt > 0 {
			name += "-" + strconv.Itoa(attempt)
		}
		namePointer, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return nil, err
		}
		var sid *windows.SID
		hresult, _, _ := procCreateAppContainerProfile.Call(
			uintptr(unsafe.Pointer(namePointer)),
			uintptr(unsafe.Pointer(namePointer)),
			uintptr(unsafe.Pointer(namePointer)),
			0, 0,
			uintptr(unsafe.Pointer(&sid)),
		)
		if uint32(hresult) == hresultAlreadyExists {
			continue
		}
		if hresult != 0 {
			return nil, fmt.Errorf("CreateAppContainerProfile(%s): HRESULT %#x", name, uint32(hresult))
		}
		container := &appContainer{name: name, sid: sid}
		folder, err := appContainerFolder(sid)
		if err != nil {
			container.delete()
			return nil, err
		}
		container.folder = folder
		return container, nil
	}
	return nil, fmt.Errorf("no free AppContainer name after %d attempts", maxAppContainerAttempts)
}

func appContainerFolder(sid *windows.SID) (string, error) {
	sidPointer, err := windows.UTF16PtrFromString(sid.String())
	if err != nil {
		return "", err
	}
	var path *uint16
	hresult, _, _ := procGetAppContainerFolderPath.Call(
		uintptr(unsafe.Pointer(sidPointer)),
		uintptr(unsafe.Pointer(&path)),
	)
	if hresult != 0 {
		return "", fmt.Errorf("GetAppContainerFolderPath: HRESULT %#x", uint32(hresult))
	}
	defer windows.CoTaskMemFree(unsafe.Pointer(path))
	return windows.UTF16PtrToString(path), nil
}

// capabilities returns the SECURITY_CAPABILITIES for this container.
func (c *appContainer) capabilities() *securityCapabilities {
	return &securityCapabilities{AppContainerSid: c.sid}
}

// delete removes the profile and frees its SID.
func (c *appContainer) delete() error {
	var errs []error
	if namePointer, err := windows.UTF16PtrFromString(c.name); err == nil {
		if hresult, _, _ := procDeleteAppContainerProfile.Call(uintptr(unsafe.Pointer(namePointer))); hresult != 0 {
			errs = append(errs, fmt.Errorf("DeleteAppContainerProfile(%s): HRESULT %#x", c.name, uint32(hresult)))
		}
	}
	if c.sid != nil {
		if err := windows.FreeSid(c.sid); err != nil {
			errs = append(errs, err)
		}
		c.sid = nil
	}
	return errors.Join(errs...)
}

// appContainerSupported reports whether userenv exports the profile API.
func appContainerSupported() bool {
	return procCreateAppContainerProfile.Find() == nil
}
