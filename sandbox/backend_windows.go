// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/grackle-zero/grackle/lib/channel"
	"github.com/grackle-zero/grackle/lib/handletable"
)

// windowsBackend runs children with a restricted token inside a
// capability-free AppContainer, in a job object that kills the child
// when the parent goes away and forbids it from creating processes.
type windowsBackend struct{}

func newBackend(Config) (backend, error) {
	return windowsBackend{}, nil
}

func (windowsBackend) name() string {
	return "appcontainer"
}

// check enforces the directions Windows standard handles can carry and
// rejects KeepInChild beyond them.
func (windowsBackend) check(launch *LaunchConfig) error {
	for _, slot := range launch.Channels.Slots() {
		switch {
		case slot.Number == 0 && slot.Mode == channel.FromChild:
			return configurationError("check channels", "stdin (slot 0) cannot be %v", slot.Mode)
		case (slot.Number == 1 || slot.Number == 2) && slot.Mode == channel.ToChild:
			return configurationError("check channels", "slot %d cannot be %v", slot.Number, slot.Mode)
		case slot.Number > 2 && slot.Mode == channel.KeepInChild:
			return configurationError("check channels", "slot %d: %v is only supported for slots 0-2 on windows", slot.Number, slot.Mode)
		}
	}
	return nil
}

func (windowsBackend) start(ctx context.Context, request *startRequest) (process, error) {
	if !appContainerSupported() {
		return nil, newError(KindRestriction, "check platform support", errors.New("AppContainer profiles are not available"))
	}

	inherited, closeInherited, err := inheritableHandles(request.table)
	if err != nil {
		return nil, newError(KindResource, "duplicate channel handles", err)
	}
	defer closeInherited()

	token, err := restrictedToken()
	if err != nil {
		return nil, newError(KindRestriction, "create restricted token", err)
	}
	defer token.Close()

	container, err := createAppContainer()
	if err != nil {
		return nil, newError(KindRestriction, "create appcontainer", err)
	}
	request.logger.Debug("appcontainer created", "name", container.name, "folder", container.folder)

	proc, err := createContained(request, token, container, inherited)
	if err != nil {
		if deleteErr := container.delete(); deleteErr != nil {
			request.logger.Warn("deleting appcontainer after failed launch", "error", deleteErr)
		}
		return nil, err
	}
	return proc, nil
}

// handleSet is the child's view of its channels.
type handleSet struct {
	std   [3]windows.Handle
	extra []handletable.Entry
	all   []windows.Handle
}

// inheritableHandles duplicates every child end as an inheritable
// handle. The originals stay non-inheritable so no other process
// started by this one can receive them.
func inheritableHandles(table *channel.Table) (*handleSet, func(), error) {
	set := &handleSet{}
	current := windows.CurrentProcess()
	closeAll := func() {
		for _, handle := range set.all {
			_ = windows.CloseHandle(handle)
		}
	}
	for _, pipe := range table.Pipes() {
		if pipe.Child == nil {
			continue
		}
		var duplicate windows.Handle
		err := windows.DuplicateHandle(current, windows.Handle(pipe.Child.Fd()), current, &duplicate, 0, true, windows.DUPLICATE_SAME_ACCESS)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("slot %d: %w", pipe.Slot, err)
		}
		set.all = append(set.all, duplicate)
		if pipe.Slot < 3 {
			set.std[pipe.Slot] = duplicate
		} else {
			set.extra = append(set.extra, handletable.Entry{Slot: uint32(pipe.Slot), Handle: uint64(duplicate)})
		}
	}
	return set, closeAll, nil
}

// createContained starts the child suspended, places it in a job, and
// resumes it only once the job is in force.
func createContained(request *startRequest, token windows.Token, container *appContainer, handles *handleSet) (*windowsProcess, error) {
	block := environmentBlock(childEnvironment(request.env, systemRoot(), container.folder, handles.extra))

	attributes, err := windows.NewProcThreadAttributeList(2)
	if err != nil {
		return nil, newError(KindResource, "allocate attribute list", err)
	}
	defer attributes.Delete()

	capabilities := container.capabilities()
	if err := attributes.Update(procThreadAttributeSecurityCapabilities, unsafe.Pointer(capabilities), unsafe.Sizeof(*capabilities)); err != nil {
		return nil, newError(KindRestriction, "set security capabilities", err)
	}
	// An empty handle list is rejected, so it is only set when the
	// child inherits something. Without it, bInheritHandles is false.
	inheritHandles := len(handles.all) > 0
	if inheritHandles {
		if err := attributes.Update(windows.PROC_THREAD_ATTRIBUTE_HANDLE_LIST, unsafe.Pointer(&handles.all[0]), uintptr(len(handles.all))*unsafe.Sizeof(handles.all[0])); err != nil {
			return nil, newError(KindResource, "set handle list", err)
		}
	}

	startup := &windows.StartupInfoEx{
		StartupInfo: windows.StartupInfo{
			Cb:        uint32(unsafe.Sizeof(windows.StartupInfoEx{})),
			Flags:     windows.STARTF_USESTDHANDLES,
			StdInput:  handles.std[0],
			StdOutput: handles.std[1],
			StdErr:    handles.std[2],
		},
		ProcThreadAttributeList: attributes.List(),
	}

	application, err := windows.UTF16PtrFromString(request.executable)
	if err != nil {
		return nil, configurationError("encode executable", "%v", err)
	}
	commandLine, err := windows.UTF16PtrFromString(windows.ComposeCommandLine(request.argv))
	if err != nil {
		return nil, configurationError("encode command line", "%v", err)
	}
	var directory *uint16
	if request.dir != "" {
		if directory, err = windows.UTF16PtrFromString(request.dir); err != nil {
			return nil, configurationError("encode working directory", "%v", err)
		}
	}

	var info windows.ProcessInformation
	flags := uint32(windows.CREATE_SUSPENDED | windows.EXTENDED_STARTUPINFO_PRESENT | windows.CREATE_UNICODE_ENVIRONMENT)
	err = windows.CreateProcessAsUser(token, application, commandLine, nil, nil, inheritHandles, flags, &block[0], directory, &startup.StartupInfo, &info)
	if err != nil {
		return nil, newError(KindResource, "create process", err)
	}
	request.logger.Debug("process created suspended", "pid", info.ProcessId, "state", StateSpawning)

	job, err := killOnCloseJob()
	if err == nil {
		err = windows.AssignProcessToJobObject(job, info.Process)
		if err != nil {
			windows.CloseHandle(job)
		}
	}
	if err != nil {
		_ = windows.TerminateProcess(info.Process, 1)
		_, _ = windows.WaitForSingleObject(info.Process, windows.INFINITE)
		windows.CloseHandle(info.Thread)
		windows.CloseHandle(info.Process)
		return nil, newError(KindRestriction, "assign job object", err)
	}

	if _, err := windows.ResumeThread(info.Thread); err != nil {
		_ = windows.TerminateJobObject(job, 1)
		windows.CloseHandle(job)
		windows.CloseHandle(info.Thread)
		windows.CloseHandle(info.Process)
		return nil, newError(KindResource, "resume process", err)
	}
	windows.CloseHandle(info.Thread)

	return &windowsProcess{
		process:   info.Process,
		job:       job,
		processID: info.ProcessId,
		container: container,
	}, nil
}

// killOnCloseJob creates a job that kills its processes when the last
// handle closes and admits only one active process.
func killOnCloseJob() (windows.Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, err
	}
	limits := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags:         windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE | jobObjectLimitActiveProcess,
			ActiveProcessLimit: 1,
		},
	}
	_, err = windows.SetInformationJobObject(job, windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&limits)), uint32(unsafe.Sizeof(limits)))
	if err != nil {
		windows.CloseHandle(job)
		return 0, err
	}
	return job, nil
}

// jobObjectLimitActiveProcess is JOB_OBJECT_LIMIT_ACTIVE_PROCESS.
const jobObjectLimitActiveProcess = 0x00000008

func systemRoot() string {
	if root := os.Getenv("SystemRoot"); root != "" {
		return root
	}
	return `C:\Windows`
}

// DetectCapabilities checks for AppContainer support.
func DetectCapabilities() *Capabilities {
	caps := newCapabilities()
	caps.AppContainerSupported = appContainerSupported()
	if !caps.AppContainerSupported {
		caps.Reason = "AppContainer profiles require Windows 8 or later"
	}
	return caps
}
