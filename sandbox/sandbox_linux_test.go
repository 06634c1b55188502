// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/grackle-zero/grackle/lib/channel"
	"github.com/grackle-zero/grackle/lib/packet"
	"github.com/grackle-zero/grackle/lib/testutil"
	"github.com/grackle-zero/grackle/sandbox"
	"github.com/grackle-zero/grackle/sandbox/probe"
)

func requireSandbox(t *testing.T) *sandbox.Sandbox {
	t.Helper()
	if caps := sandbox.DetectCapabilities(); !caps.CanRunSandbox() {
		t.Skipf("sandbox unavailable: %s", caps.SkipReason())
	}
	s, err := sandbox.New(sandbox.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	return s
}

func probeLaunch(t *testing.T, name, target string) sandbox.LaunchConfig {
	env := map[string]string{probe.EnvName: name}
	if target != "" {
		env[probe.EnvTarget] = target
	}
	return sandbox.LaunchConfig{
		Command:  testutil.SelfBinary(t),
		Env:      env,
		Channels: channel.Basic(channel.ToChild, channel.FromChild, channel.FromChild),
	}
}

func TestEchoThroughChannels(t *testing.T) {
	s := requireSandbox(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload := testutil.UniqueID("hello sandbox")
	var echoed []byte
	status, err := s.Run(ctx, probeLaunch(t, probe.EchoProbe, ""), sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		stdin, err := child.TakeStreamToChild(0)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(stdin, payload); err != nil {
			stdin.Close()
			return err
		}
		stdin.Close()

		stdout, err := child.TakeStreamFromChild(1)
		if err != nil {
			return err
		}
		defer stdout.Close()
		echoed, err = io.ReadAll(stdout)
		return err
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !status.Success() {
		t.Fatalf("status = %v", status)
	}
	if string(echoed) != payload {
		t.Fatalf("echoed %q", echoed)
	}
}

func TestHostFileReadIsBlocked(t *testing.T) {
	s := requireSandbox(t)
	secret := testutil.WriteFile(t, "secret", "do not read")

	var stdout []byte
	status, err := s.Run(context.Background(), probeLaunch(t, "read-file", secret), sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		stdin, err := child.TakeStreamToChild(0)
		if err != nil {
			return err
		}
		defer stdin.Close()
		if _, err := stdin.Write([]byte{probe.SignalGo}); err != nil {
			return err
		}
		out, err := child.TakeStreamFromChild(1)
		if err != nil {
			return err
		}
		defer out.Close()
		stdout, err = io.ReadAll(out)
		return err
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(stdout) != string(probe.SignalReady) {
		t.Fatalf("stdout = %q, want only the ready signal", stdout)
	}
	if status.Termination != sandbox.Exited || status.Code != 1 {
		t.Fatalf("status = %v, want exit status 1 (blocked)", status)
	}
}

func TestProbesUnderSandbox(t *testing.T) {
	s := requireSandbox(t)
	runner := &probe.Runner{Sandbox: s, Command: testutil.SelfBinary(t), Timeout: 20 * time.Second}
	for _, result := range runner.RunAll(context.Background()) {
		if !result.Passed {
			t.Errorf("%s: %s (%v)", result.Probe.Name, result.Detail, result.Status)
		}
	}
}

func TestStreamsTakenOnce(t *testing.T) {
	s := requireSandbox(t)
	child, err := s.Start(context.Background(), probeLaunch(t, probe.EchoProbe, ""))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if child.State() != sandbox.StateRestrictionApplied {
		t.Errorf("state = %v", child.State())
	}

	stdin, err := child.TakeStreamToChild(0)
	if err != nil {
		t.Fatalf("TakeStreamToChild: %v", err)
	}
	if _, err := child.TakeStreamToChild(0); !errors.Is(err, sandbox.ErrNoSuchStream) {
		t.Errorf("second take = %v", err)
	}
	if _, err := child.TakeStreamToChild(1); !errors.Is(err, sandbox.ErrNoSuchStream) {
		t.Errorf("take of FromChild slot as ToChild = %v", err)
	}
	stdin.Close()

	stdout, err := child.TakeStreamFromChild(1)
	if err != nil {
		t.Fatalf("TakeStreamFromChild: %v", err)
	}
	io.Copy(io.Discard, stdout)
	stdout.Close()
	stderr, err := child.TakeStreamFromChild(2)
	if err != nil {
		t.Fatalf("TakeStreamFromChild(2): %v", err)
	}
	stderr.Close()

	first, err := child.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	second, err := child.Wait()
	if err != nil || first != second {
		t.Fatalf("second Wait = %v, %v; first %v", second, err, first)
	}
	if _, done, _ := child.ExitStatus(); !done {
		t.Fatal("ExitStatus after Wait reports running")
	}
}

func TestTerminateBlockedChild(t *testing.T) {
	s := requireSandbox(t)
	child, err := s.Start(context.Background(), probeLaunch(t, probe.EchoProbe, ""))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stdin, _ := child.TakeStreamToChild(0)
	defer stdin.Close()

	if _, done, err := child.ExitStatus(); done || err != nil {
		t.Fatalf("ExitStatus of a blocked child = done %v, err %v", done, err)
	}
	status, err := child.Terminate()
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if status.Termination != sandbox.Killed {
		t.Fatalf("status = %v, want killed", status)
	}
	testutil.RequireClosed(t, child.Done(), 5*time.Second, "Done after Terminate")
}

func TestCancelKillsChild(t *testing.T) {
	s := requireSandbox(t)
	ctx, cancel := context.WithCancel(context.Background())
	status, err := s.Run(ctx, probeLaunch(t, probe.EchoProbe, ""), sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		stdout, err := child.TakeStreamFromChild(1)
		if err != nil {
			return err
		}
		defer stdout.Close()
		cancel()
		_, err = io.ReadAll(stdout)
		return err
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.Termination != sandbox.Killed {
		t.Fatalf("status = %v, want killed", status)
	}
}

func TestMissingWorkingDirectory(t *testing.T) {
	s := requireSandbox(t)
	launch := probeLaunch(t, "noop", "")
	launch.Dir = filepath.Join(t.TempDir(), "absent")
	_, err := s.Start(context.Background(), launch)
	if !errors.Is(err, sandbox.ErrConfiguration) {
		t.Fatalf("Start = %v, want configuration error", err)
	}
	if !strings.Contains(err.Error(), "working directory") {
		t.Errorf("error %q does not name the working directory", err)
	}
}

func TestPacketsOnNonStandardSlot(t *testing.T) {
	s := requireSandbox(t)
	launch := probeLaunch(t, probe.PacketEchoProbe, "3")
	launch.Channels = launch.Channels.With(3, channel.FromChild).With(7, channel.ToChild)

	payloads := []string{testutil.UniqueID("packet"), "", testutil.UniqueID("packet")}
	var echoed []string
	status, err := s.Run(context.Background(), launch, sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		stdin, err := child.TakeStreamToChild(0)
		if err != nil {
			return err
		}
		slot3, err := child.TakeStreamFromChild(3)
		if err != nil {
			stdin.Close()
			return err
		}
		conn := packet.NewConn(slot3, stdin, 0)
		defer conn.Close()
		for _, payload := range payloads {
			if err := conn.WritePacket([]byte(payload)); err != nil {
				return err
			}
			echo, err := conn.ReadPacket()
			if err != nil {
				return err
			}
			echoed = append(echoed, string(echo))
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !status.Success() {
		t.Fatalf("status = %v", status)
	}
	if strings.Join(echoed, "|") != strings.Join(payloads, "|") {
		t.Fatalf("echoed %q, want %q", echoed, payloads)
	}
}

// redirectDescriptor points this process's descriptor fd at file until
// the test ends, so KeepInChild slots hand file to the child.
func redirectDescriptor(t *testing.T, fd int, file *os.File) {
	t.Helper()
	saved, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil && !errors.Is(err, unix.EBADF) {
		t.Fatalf("saving descriptor %d: %v", fd, err)
	}
	if err := unix.Dup3(int(file.Fd()), fd, 0); err != nil {
		t.Fatalf("redirecting descriptor %d: %v", fd, err)
	}
	t.Cleanup(func() {
		if saved < 0 {
			unix.Close(fd)
			return
		}
		unix.Dup3(saved, fd, 0)
		unix.Close(saved)
	})
}

func keptStderr(t *testing.T) *os.File {
	t.Helper()
	file, err := os.Create(filepath.Join(t.TempDir(), "stderr"))
	if err != nil {
		t.Fatalf("creating stderr file: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	redirectDescriptor(t, 2, file)
	return file
}

func readBack(t *testing.T, file *os.File) string {
	t.Helper()
	data, err := os.ReadFile(file.Name())
	if err != nil {
		t.Fatalf("reading %s: %v", file.Name(), err)
	}
	return string(data)
}

func TestEchoWithKeptStderr(t *testing.T) {
	s := requireSandbox(t)
	stderr := keptStderr(t)

	launch := probeLaunch(t, probe.EchoProbe, "")
	launch.Channels = channel.Basic(channel.ToChild, channel.FromChild, channel.KeepInChild)
	var echoed []byte
	status, err := s.Run(context.Background(), launch, sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		if _, err := child.TakeStreamFromChild(2); !errors.Is(err, sandbox.ErrNoSuchStream) {
			return fmt.Errorf("kept slot 2 produced a parent stream: %v", err)
		}
		stdin, err := child.TakeStreamToChild(0)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdin, "ACK")
		stdin.Close()
		if err != nil {
			return err
		}
		stdout, err := child.TakeStreamFromChild(1)
		if err != nil {
			return err
		}
		defer stdout.Close()
		echoed, err = io.ReadAll(stdout)
		return err
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !status.Success() || string(echoed) != "ACK" {
		t.Fatalf("status = %v, echoed %q; want success and \"ACK\"", status, echoed)
	}
	if got := readBack(t, stderr); got != "" {
		t.Errorf("unexpected stderr output %q", got)
	}
}

func TestKeptStderrPassesBytesThrough(t *testing.T) {
	s := requireSandbox(t)
	stderr := keptStderr(t)

	launch := probeLaunch(t, probe.EchoProbe, "2")
	launch.Channels = channel.Basic(channel.ToChild, channel.FromChild, channel.KeepInChild)
	payload := testutil.UniqueID("diagnostic") + "\x00\xff\n"
	status, err := s.Run(context.Background(), launch, sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		stdin, err := child.TakeStreamToChild(0)
		if err != nil {
			return err
		}
		defer stdin.Close()
		_, err = io.WriteString(stdin, payload)
		return err
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !status.Success() {
		t.Fatalf("status = %v", status)
	}
	if got := readBack(t, stderr); got != payload {
		t.Fatalf("stderr = %q, want %q verbatim", got, payload)
	}
}

func TestBlockedReadReportsOnKeptStderr(t *testing.T) {
	s := requireSandbox(t)
	stderr := keptStderr(t)
	secret := testutil.WriteFile(t, "secret", "do not read")

	launch := probeLaunch(t, "read-file", secret)
	launch.Channels = channel.Basic(channel.ToChild, channel.FromChild, channel.KeepInChild)
	status, err := s.Run(context.Background(), launch, sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		stdin, err := child.TakeStreamToChild(0)
		if err != nil {
			return err
		}
		defer stdin.Close()
		_, err = stdin.Write([]byte{probe.SignalGo})
		return err
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.Success() {
		t.Fatalf("status = %v, want a failure", status)
	}
	report := readBack(t, stderr)
	if !strings.Contains(report, "read-file blocked") || !strings.Contains(report, "permission denied") {
		t.Fatalf("stderr = %q, want a permission denial report", report)
	}
}

// sessionOf returns the session ID field of /proc/<pid>/stat.
func sessionOf(t *testing.T, pid int) int {
	t.Helper()
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		t.Fatalf("reading stat of %d: %v", pid, err)
	}
	// The command name may contain spaces; fields resume after ')'.
	fields := strings.Fields(string(data[bytes.LastIndexByte(data, ')')+1:]))
	if len(fields) < 4 {
		t.Fatalf("short stat line %q", data)
	}
	sid, err := strconv.Atoi(fields[3])
	if err != nil {
		t.Fatalf("session field %q: %v", fields[3], err)
	}
	return sid
}

func TestChildRunsInItsOwnSession(t *testing.T) {
	s := requireSandbox(t)
	child, err := s.Start(context.Background(), probeLaunch(t, probe.EchoProbe, ""))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer child.Terminate()

	own, err := unix.Getsid(0)
	if err != nil {
		t.Fatalf("Getsid: %v", err)
	}
	sid := sessionOf(t, child.Pid())
	if sid == own {
		t.Fatalf("child shares the launcher's session %d", own)
	}
	if sid != child.Pid() {
		t.Errorf("child session = %d, want the child leading its own session %d", sid, child.Pid())
	}
}

// openTerminal returns both sides of a new pseudo-terminal.
func openTerminal(t *testing.T) (master, replica *os.File) {
	t.Helper()
	fd, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("no pseudo-terminals: %v", err)
	}
	master = os.NewFile(uintptr(fd), "ptmx")
	t.Cleanup(func() { master.Close() })
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		t.Fatalf("unlocking terminal: %v", err)
	}
	number, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		t.Fatalf("terminal number: %v", err)
	}
	replica, err = os.OpenFile("/dev/pts/"+strconv.FormatUint(uint64(number), 10), os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		t.Fatalf("opening terminal replica: %v", err)
	}
	t.Cleanup(func() { replica.Close() })
	return master, replica
}

func TestTerminalInjectionIsBlocked(t *testing.T) {
	s := requireSandbox(t)
	_, replica := openTerminal(t)
	const slot = 100
	redirectDescriptor(t, slot, replica)

	runner := &probe.Runner{
		Sandbox:  s,
		Command:  testutil.SelfBinary(t),
		Timeout:  20 * time.Second,
		Channels: channel.Basic(channel.ToChild, channel.FromChild, channel.FromChild).With(slot, channel.KeepInChild),
	}
	p, ok := probe.Lookup("terminal-tiocsti")
	if !ok {
		t.Fatal("terminal-tiocsti not registered")
	}
	result := runner.RunTarget(context.Background(), p, strconv.Itoa(slot))
	if !result.Passed {
		t.Fatalf("TIOCSTI on a kept terminal was not blocked: %s (%v)", result.Detail, result.Status)
	}
	if !strings.Contains(result.Detail, "operation not permitted") {
		t.Errorf("detail = %q, want a permission error", result.Detail)
	}
}
