// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/grackle-zero/grackle/lib/binhash"
	"github.com/grackle-zero/grackle/lib/channel"
)

// Handler exchanges data with a running child. It is called exactly
// once per launch, after restrictions are in force.
type Handler interface {
	Handle(ctx context.Context, child *Child) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, child *Child) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, child *Child) error {
	return f(ctx, child)
}

// Sandbox launches programs under the platform's restriction backend.
type Sandbox struct {
	logger  *slog.Logger
	backend backend
}

// Config holds Sandbox options.
type Config struct {
	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger

	// HelperPath is the binary re-executed to install restrictions on
	// Linux. It must call MaybeRunHelper at the top of main. Defaults
	// to the running executable.
	HelperPath string
}

// New creates a Sandbox for the current platform.
func New(config Config) (*Sandbox, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b, err := newBackend(config)
	if err != nil {
		return nil, err
	}
	return &Sandbox{logger: logger, backend: b}, nil
}

// Run launches a program and drives it to completion with the default
// Sandbox.
func Run(ctx context.Context, launch LaunchConfig, handler Handler) (ExitStatus, error) {
	s, err := New(Config{})
	if err != nil {
		return ExitStatus{}, err
	}
	return s.Run(ctx, launch, handler)
}

// Run launches a program, calls handler once, closes every stream the
// handler did not take, and waits for the child to exit.
//
// The returned error joins the handler's error (as KindCommunication)
// with any wait failure, so neither hides the other. The exit status is
// valid whenever the child was started, even if the handler failed.
// Cancelling ctx kills the child.
func (s *Sandbox) Run(ctx context.Context, launch LaunchConfig, handler Handler) (ExitStatus, error) {
	child, err := s.Start(ctx, launch)
	if err != nil {
		return ExitStatus{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		s.logger.Info("launch context cancelled, terminating child", "pid", child.Pid())
		_, _ = child.Terminate()
	})
	defer stop()

	child.advance(StateCommunicating)
	handlerErr := s.handle(ctx, child, handler)
	closeErr := child.closeStreams()
	status, waitErr := child.Wait()

	s.logger.Info("sandboxed process exited",
		"pid", child.Pid(),
		"status", status.String(),
		"handler_error", handlerErr != nil,
	)
	if handlerErr != nil {
		handlerErr = newError(KindCommunication, "handler", handlerErr)
	}
	if closeErr != nil {
		closeErr = newError(KindCommunication, "close streams", closeErr)
	}
	return status, errors.Join(handlerErr, closeErr, waitErr)
}

// handle runs the handler. A panic terminates and reaps the child
// before propagating.
func (s *Sandbox) handle(ctx context.Context, child *Child, handler Handler) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			_ = child.closeStreams()
			_, _ = child.Terminate()
			panic(recovered)
		}
	}()
	if handler == nil {
		return nil
	}
	return handler.Handle(ctx, child)
}

// Start launches a program and returns once its restrictions are
// confirmed. The caller must eventually call Wait or Terminate on the
// returned Child, and close the streams it takes.
func (s *Sandbox) Start(ctx context.Context, launch LaunchConfig) (*Child, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindResource, "start", err)
	}
	if err := launch.validate(); err != nil {
		return nil, err
	}
	if err := s.backend.check(&launch); err != nil {
		return nil, err
	}
	executable, err := resolveCommand(launch.Command)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("executable", executable, "backend", s.backend.name())
	if digest, err := binhash.HashFile(executable); err == nil {
		logger = logger.With("digest", digest.String())
	} else {
		logger.Warn("could not hash executable", "error", err)
	}
	logger.Debug("configuring launch", "state", StateConfiguring, "channels", launch.Channels.String())

	table, err := channel.Open(launch.Channels, nil)
	if err != nil {
		if errors.Is(err, channel.ErrDuplicateSlot) || errors.Is(err, channel.ErrInvalidSlot) {
			return nil, newError(KindConfiguration, "open channels", err)
		}
		return nil, newError(KindResource, "open channels", err)
	}

	proc, err := s.backend.start(ctx, &startRequest{
		executable: executable,
		argv:       launch.argv(),
		dir:        launch.Dir,
		env:        launch.Env,
		table:      table,
		logger:     logger,
	})
	if err != nil {
		if closeErr := table.Close(); closeErr != nil {
			logger.Warn("closing channels after failed launch", "error", closeErr)
		}
		var sandboxError *Error
		if !errors.As(err, &sandboxError) {
			err = newError(KindResource, "start child", err)
		}
		logger.Error("launch failed", "error", err)
		return nil, err
	}

	if err := table.CloseChildEnds(); err != nil {
		logger.Warn("closing child ends in parent", "error", err)
	}
	child := newChild(proc, executable, table.DetachParentEnds())
	logger.Info("sandboxed process started", "pid", proc.pid(), "state", StateRestrictionApplied)
	return child, nil
}

// String describes the sandbox for diagnostics.
func (s *Sandbox) String() string {
	return fmt.Sprintf("sandbox(%s)", s.backend.name())
}
