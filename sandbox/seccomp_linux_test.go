// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"encoding/binary"
	"slices"
	"testing"

	seccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-seccomp-bpf/arch"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

func TestAllowedSyscallsExcludeDangerousCalls(t *testing.T) {
	allowed, _, err := allowedSyscalls()
	if err != nil {
		t.Skipf("no seccomp syscall table for this architecture: %v", err)
	}
	for _, name := range []string{"read", "write", "execve", "exit_group", "mmap", "futex"} {
		if !slices.Contains(allowed, name) {
			t.Errorf("%s missing from allow-list", name)
		}
	}
	for _, name := range []string{
		"socket", "socketpair", "connect", "bind", "ptrace", "mount", "setuid",
		"kill", "unshare", "setns", "bpf", "process_vm_writev", "landlock_restrict_self",
		"ioctl", "clone",
	} {
		if slices.Contains(allowed, name) {
			t.Errorf("%s must not be allowed", name)
		}
	}
	if err := validateSyscallPolicy(allowed); err != nil {
		t.Fatalf("validateSyscallPolicy: %v", err)
	}
}

func TestAllowedSyscallsUnique(t *testing.T) {
	allowed, _, err := allowedSyscalls()
	if err != nil {
		t.Skipf("no seccomp syscall table for this architecture: %v", err)
	}
	seen := make(map[string]bool)
	for _, name := range allowed {
		if seen[name] {
			t.Errorf("%s listed twice", name)
		}
		seen[name] = true
	}
}

func TestInstallSyscallFilterRejectsEmptyList(t *testing.T) {
	if err := installSyscallFilter(nil); err == nil {
		t.Fatal("installSyscallFilter(nil) loaded a filter that denies everything")
	}
}

// seccompData lays out a struct seccomp_data for the bpf VM. The VM
// reads words big-endian, so each 32-bit word is stored big-endian at
// the offset the kernel would use on this host.
func seccompData(info *arch.Info, name string, args ...uint64) []byte {
	data := make([]byte, 64)
	binary.BigEndian.PutUint32(data[0:], uint32(info.SyscallNames[name]|info.SeccompMask))
	binary.BigEndian.PutUint32(data[4:], uint32(info.ID))
	littleEndian := binary.NativeEndian.Uint16([]byte{1, 0}) == 1
	for i, value := range args {
		offset := 16 + 8*i
		lo, hi := offset, offset+4
		if !littleEndian {
			lo, hi = hi, lo
		}
		binary.BigEndian.PutUint32(data[lo:], uint32(value))
		binary.BigEndian.PutUint32(data[hi:], uint32(value>>32))
	}
	return data
}

func TestSyscallPolicyArgumentRules(t *testing.T) {
	info, err := arch.GetInfo("")
	if err != nil {
		t.Skipf("no seccomp syscall table for this architecture: %v", err)
	}
	allowed, _, err := allowedSyscalls()
	if err != nil {
		t.Fatalf("allowedSyscalls: %v", err)
	}
	instructions, err := syscallPolicy(allowed).Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	vm, err := bpf.NewVM(instructions)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}

	allow := int(seccomp.ActionAllow)
	deny := int(uint32(seccomp.ActionErrno) | uint32(unix.EPERM))
	tests := []struct {
		name    string
		syscall string
		args    []uint64
		want    int
	}{
		{"read", "read", []uint64{0, 0, 0}, allow},
		{"socket", "socket", []uint64{unix.AF_INET, unix.SOCK_STREAM, 0}, deny},
		{"ioctl TCGETS", "ioctl", []uint64{0, unix.TCGETS}, allow},
		{"ioctl TIOCGWINSZ", "ioctl", []uint64{1, unix.TIOCGWINSZ}, allow},
		{"ioctl TIOCSTI", "ioctl", []uint64{0, unix.TIOCSTI}, deny},
		{"ioctl TIOCLINUX", "ioctl", []uint64{0, unix.TIOCLINUX}, deny},
		{"ioctl TIOCSTI with upper bits", "ioctl", []uint64{0, 1<<32 | unix.TIOCSTI}, deny},
		{"ioctl sign-extended request", "ioctl", []uint64{0, 0xffffffff_802c542a}, allow},
		{"clone thread", "clone", []uint64{unix.CLONE_VM | unix.CLONE_THREAD | unix.CLONE_SIGHAND}, allow},
		{"clone fork", "clone", []uint64{uint64(unix.SIGCHLD)}, allow},
		{"clone new user namespace", "clone", []uint64{unix.CLONE_NEWUSER | uint64(unix.SIGCHLD)}, deny},
		{"clone new network namespace", "clone", []uint64{unix.CLONE_NEWNET}, deny},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := vm.Run(seccompData(info, test.syscall, test.args...))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got != test.want {
				t.Errorf("filter returned %#x, want %#x", got, test.want)
			}
		})
	}
}
