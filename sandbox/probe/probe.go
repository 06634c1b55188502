// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe checks that the sandbox holds by running small escape
// attempts inside it.
//
// The same binary plays both roles. Inside the sandbox, [Main] performs
// one [Probe] using a three-step handshake over stdin and stdout: the
// parent sends "0", the child answers "1" once it is running, attempts
// the action, and answers "2" only if the action succeeded. A child
// that exits without sending "2" was blocked. Outside, a [Runner]
// launches the binary under restriction for each probe and interprets
// the handshake.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/grackle-zero/grackle/lib/childio"
	"github.com/grackle-zero/grackle/lib/packet"
)

// Environment variables selecting the probe a child runs.
const (
	EnvName   = "GRACKLE_PROBE"
	EnvTarget = "GRACKLE_PROBE_TARGET"
)

// Handshake bytes.
const (
	SignalGo        = '0'
	SignalReady     = '1'
	SignalCompleted = '2'
)

// EchoProbe copies stdin to the slot named by its target (stdout by
// default) without the handshake. It checks that channels work under
// restriction.
const EchoProbe = "echo"

// PacketEchoProbe reads length-prefixed packets from stdin and writes
// each one back, framed, to the slot named by its target (stdout by
// default). It checks framing and non-standard slots end to end.
const PacketEchoProbe = "packet-echo"

// Probe is one escape attempt. Run returns nil when the action
// succeeded, which is an escape for probes with ExpectBlocked set.
type Probe struct {
	Name        string
	Description string
	Category    string // "control", "filesystem", "network", "process", "privilege", "terminal"
	Severity    string // "critical", "high", "medium", "low"

	// ExpectBlocked is false for control probes that must succeed.
	ExpectBlocked bool

	// DefaultTarget is used when no target is given.
	DefaultTarget string

	Run func(ctx context.Context, target string) error
}

// Probes lists every probe, controls first.
var Probes = append(portableBattery, platformBattery()...)

var portableBattery = []Probe{
	{
		Name:        "noop",
		Description: "Start and complete the handshake without doing anything",
		Category:    "control",
		Severity:    "low",
		Run: func(ctx context.Context, target string) error {
			return nil
		},
	},
	{
		Name:          "read-file",
		Description:   "Read a host file outside the allow-list",
		Category:      "filesystem",
		Severity:      "critical",
		ExpectBlocked: true,
		DefaultTarget: hostFile(),
		Run: func(ctx context.Context, target string) error {
			_, err := os.ReadFile(target)
			return err
		},
	},
	{
		Name:          "write-file",
		Description:   "Create a file in the temporary directory",
		Category:      "filesystem",
		Severity:      "critical",
		ExpectBlocked: true,
		DefaultTarget: filepath.Join(os.TempDir(), "grackle-probe-write"),
		Run: func(ctx context.Context, target string) error {
			if err := os.WriteFile(target, []byte("escaped\n"), 0o600); err != nil {
				return err
			}
			_ = os.Remove(target)
			return nil
		},
	},
	{
		Name:          "list-directory",
		Description:   "List the root directory",
		Category:      "filesystem",
		Severity:      "high",
		ExpectBlocked: true,
		DefaultTarget: rootDirectory(),
		Run: func(ctx context.Context, target string) error {
			_, err := os.ReadDir(target)
			return err
		},
	},
	{
		Name:          "tcp-connect",
		Description:   "Open a TCP connection",
		Category:      "network",
		Severity:      "critical",
		ExpectBlocked: true,
		DefaultTarget: "127.0.0.1:80",
		Run: func(ctx context.Context, target string) error {
			dialer := net.Dialer{Timeout: 2 * time.Second}
			conn, err := dialer.DialContext(ctx, "tcp", target)
			if err == nil {
				conn.Close()
				return nil
			}
			// A refused or timed-out connection still reached the
			// network stack; only a permission failure is a block.
			if errors.Is(err, fs.ErrPermission) {
				return err
			}
			return nil
		},
	},
	{
		Name:          "udp-socket",
		Description:   "Bind a UDP socket on the loopback interface",
		Category:      "network",
		Severity:      "high",
		ExpectBlocked: true,
		DefaultTarget: "127.0.0.1:0",
		Run: func(ctx context.Context, target string) error {
			conn, err := net.ListenPacket("udp", target)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	},
	{
		Name:          "spawn-shell",
		Description:   "Execute the system shell",
		Category:      "process",
		Severity:      "critical",
		ExpectBlocked: true,
		DefaultTarget: systemShell(),
		Run: func(ctx context.Context, target string) error {
			return exec.CommandContext(ctx, target, shellArgs()...).Run()
		},
	},
}

// Lookup returns the probe named name.
func Lookup(name string) (*Probe, bool) {
	for i := range Probes {
		if Probes[i].Name == name {
			return &Probes[i], true
		}
	}
	return nil, false
}

// Main runs the probe named name on the child side and returns the
// process exit code.
func Main(name, target string, stdin io.Reader, stdout, stderr io.Writer) int {
	if name == EchoProbe {
		return echo(target, stdin, stdout, stderr)
	}
	if name == PacketEchoProbe {
		return packetEcho(target, stdin, stderr)
	}
	p, ok := Lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "unknown probe %q\n", name)
		return 2
	}
	if target == "" {
		target = p.DefaultTarget
	}

	signal := make([]byte, 1)
	if _, err := io.ReadFull(stdin, signal); err != nil || signal[0] != SignalGo {
		fmt.Fprintf(stderr, "%s: waiting for go signal: %v\n", name, err)
		return 2
	}
	if _, err := stdout.Write([]byte{SignalReady}); err != nil {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Run(ctx, target); err != nil {
		fmt.Fprintf(stderr, "%s blocked: %v\n", name, err)
		return 1
	}
	if _, err := stdout.Write([]byte{SignalCompleted}); err != nil {
		return 2
	}
	return 0
}

func echo(target string, stdin io.Reader, stdout, stderr io.Writer) int {
	out := stdout
	if target != "" {
		file, err := openSlot(target)
		if err != nil {
			fmt.Fprintf(stderr, "echo: %v\n", err)
			return 2
		}
		defer file.Close()
		out = file
	}
	if _, err := io.Copy(out, stdin); err != nil {
		fmt.Fprintf(stderr, "echo: %v\n", err)
		return 1
	}
	return 0
}

func packetEcho(target string, stdin io.Reader, stderr io.Writer) int {
	if target == "" {
		target = "1"
	}
	out, err := openSlot(target)
	if err != nil {
		fmt.Fprintf(stderr, "packet-echo: %v\n", err)
		return 2
	}
	conn := packet.NewConn(stdin, out, 0)
	defer conn.Close()
	for {
		payload, err := conn.ReadPacket()
		if err == io.EOF {
			return 0
		}
		if err != nil {
			fmt.Fprintf(stderr, "packet-echo: %v\n", err)
			return 1
		}
		if err := conn.WritePacket(payload); err != nil {
			fmt.Fprintf(stderr, "packet-echo: %v\n", err)
			return 1
		}
	}
}

// openSlot opens the channel slot named by a decimal target.
func openSlot(target string) (*os.File, error) {
	slot, err := strconv.Atoi(target)
	if err != nil {
		return nil, fmt.Errorf("target %q is not a slot number", target)
	}
	return childio.Open(slot)
}

func hostFile() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\win.ini`
	}
	return "/etc/passwd"
}

func rootDirectory() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

func systemShell() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\System32\cmd.exe`
	}
	return "/bin/sh"
}

func shellArgs() []string {
	if runtime.GOOS == "windows" {
		return []string{"/c", "exit", "0"}
	}
	return []string{"-c", "exit 0"}
}
