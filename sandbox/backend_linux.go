// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/grackle-zero/grackle/lib/codec"
	"github.com/grackle-zero/grackle/lib/elfdeps"
)

// linuxBackend confines children with Landlock and seccomp, installed
// by a re-executed helper between fork and exec of the target.
type linuxBackend struct {
	helperPath string
}

func newBackend(config Config) (backend, error) {
	helperPath := config.HelperPath
	if helperPath == "" {
		helperPath = "/proc/self/exe"
	}
	return &linuxBackend{helperPath: helperPath}, nil
}

func (b *linuxBackend) name() string {
	return "landlock+seccomp"
}

// check accepts every mode on every slot.
func (b *linuxBackend) check(*LaunchConfig) error {
	return nil
}

func (b *linuxBackend) start(ctx context.Context, request *startRequest) (process, error) {
	if err := checkKernelSupport(); err != nil {
		return nil, newError(KindRestriction, "check kernel support", err)
	}
	dependencies, err := elfdeps.Discover(request.executable)
	if err != nil {
		return nil, newError(KindRestriction, "compute filesystem allow-list", err)
	}
	syscalls, unknown, err := allowedSyscalls()
	if err != nil {
		return nil, newError(KindRestriction, "build syscall allow-list", err)
	}
	if len(unknown) > 0 {
		request.logger.Debug("syscalls not present on this architecture", "names", unknown)
	}
	if err := validateSyscallPolicy(syscalls); err != nil {
		return nil, newError(KindRestriction, "build syscall allow-list", err)
	}

	plan := launchPlan{
		Executable: request.executable,
		Argv:       request.argv,
		Env:        environ(request.env),
		Dir:        request.dir,
		ReadPaths:  dependencies.Paths(),
		Syscalls:   syscalls,
	}
	request.logger.Debug("filesystem allow-list", "paths", plan.ReadPaths)

	files, mappings, cleanup, err := helperFiles(request)
	if err != nil {
		return nil, newError(KindResource, "prepare helper descriptors", err)
	}
	defer cleanup()
	plan.Mappings = mappings

	configReader, configWriter, err := os.Pipe()
	if err != nil {
		return nil, newError(KindResource, "create plan pipe", err)
	}
	defer configWriter.Close()
	statusReader, statusWriter, err := os.Pipe()
	if err != nil {
		configReader.Close()
		return nil, newError(KindResource, "create status pipe", err)
	}
	defer statusReader.Close()
	files[helperConfigFD] = configReader
	files[helperStatusFD] = statusWriter

	helper, err := os.StartProcess(b.helperPath, []string{helperArgv0}, &os.ProcAttr{
		Env:   []string{helperEnv + "=1"},
		Files: files,
		Sys: &syscall.SysProcAttr{
			// A new session has no controlling terminal, so a kept tty
			// cannot be used to push input into the parent's shell.
			Setsid:    true,
			Pdeathsig: syscall.SIGKILL,
		},
	})
	configReader.Close()
	statusWriter.Close()
	if err != nil {
		return nil, newError(KindResource, "start helper", err)
	}
	proc := &linuxProcess{process: helper}
	request.logger.Debug("helper started", "pid", helper.Pid, "state", StateSpawning)

	if err := codec.NewEncoder(configWriter).Encode(plan); err != nil {
		request.logger.Debug("sending launch plan", "error", err)
	}
	configWriter.Close()

	if err := awaitRestriction(ctx, statusReader); err != nil {
		_ = proc.kill()
		if status, waitErr := proc.wait(); waitErr == nil {
			request.logger.Debug("helper reaped after failed launch", "status", status.String())
		}
		return nil, err
	}
	return proc, nil
}

// helperFiles lays out the helper's descriptor table: channel ends for
// slots 0-2 in place (or /dev/null placeholders), two protocol slots,
// then every other channel end. The returned cleanup closes the
// placeholders.
func helperFiles(request *startRequest) ([]*os.File, []fdMapping, func(), error) {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	files := make([]*os.File, helperFirstChannelFD)
	for i := range 3 {
		files[i] = devNull
	}
	var mappings []fdMapping
	for _, pipe := range request.table.Pipes() {
		if pipe.Child == nil {
			continue
		}
		if pipe.Slot < 3 {
			files[pipe.Slot] = pipe.Child
			mappings = append(mappings, fdMapping{Source: pipe.Slot, Target: pipe.Slot})
			continue
		}
		files = append(files, pipe.Child)
		mappings = append(mappings, fdMapping{Source: len(files) - 1, Target: pipe.Slot})
	}
	return files, mappings, func() { devNull.Close() }, nil
}

// awaitRestriction reads helper reports until the status pipe closes.
// Success is a restriction confirmation followed by end-of-stream,
// which happens when the successful exec closes the close-on-exec
// status descriptor.
func awaitRestriction(ctx context.Context, status *os.File) error {
	stop := context.AfterFunc(ctx, func() {
		_ = status.SetReadDeadline(time.Now())
	})
	defer stop()

	decoder := codec.NewDecoder(status)
	restricted := false
	for {
		var report helperReport
		err := decoder.Decode(&report)
		if err == io.EOF {
			if restricted {
				return nil
			}
			return newError(KindRestriction, "confirm restrictions", errors.New("helper exited before confirming restrictions"))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return newError(KindResource, "await helper", ctxErr)
			}
			return newError(KindRestriction, "confirm restrictions", fmt.Errorf("reading helper status: %w", err))
		}
		if report.Restricted {
			restricted = true
			continue
		}
		return report.asError()
	}
}

func (r helperReport) asError() error {
	var err error = errors.New(r.Message)
	if r.Errno != 0 {
		err = fmt.Errorf("%s: %w", r.Message, syscall.Errno(r.Errno))
	}
	switch r.Stage {
	case stageLandlock:
		return newError(KindRestriction, "apply landlock ruleset", err)
	case stageSeccomp:
		return newError(KindRestriction, "install seccomp filter", err)
	case stageChdir:
		return newError(KindConfiguration, "change working directory", err)
	case stageExec:
		return newError(KindResource, "exec target", err)
	default:
		return newError(KindResource, "helper "+r.Stage, err)
	}
}
