// Package service brackets backup runs with OS service suspension: the
// managed data root must not be written while the snapshot tool reads it,
// and that is guaranteed only by the stop/restart bracket implemented here.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"
)

// Manager stops and starts OS services through the service manager binary.
type Manager struct {
	Binary string // default "service"
}

func (m *Manager) bin() string {
	if m.Binary == "" {
		return "service"
	}
	return m.Binary
}

// Stop stops one service by name.
func (m *Manager) Stop(ctx context.Context, name string) error {
	if out, err := exec.CommandContext(ctx, m.bin(), name, "stop").CombinedOutput(); err != nil {
		return fmt.Errorf("stop %s: %w: %s", name, err, out)
	}
	return nil
}

// Start starts one service by name.
func (m *Manager) Start(ctx context.Context, name string) error {
	if out, err := exec.CommandContext(ctx, m.bin(), name, "start").CombinedOutput(); err != nil {
		return fmt.Errorf("start %s: %w: %s", name, err, out)
	}
	return nil
}

// StopAll stops the named services in order and returns a restart function
// covering every service that was actually stopped. The restart function
// attempts each start even when an earlier one fails and joins the errors;
// callers must invoke it on every path out of the suspended region,
// including after a stop failure partway through the list.
func (m *Manager) StopAll(ctx context.Context, names []string) (restart func(context.Context) error, err error) {
	var stopped []string
	restart = func(ctx context.Context) error {
		var errs []error
		for _, name := range stopped {
			if err := m.Start(ctx, name); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	for _, name := range names {
		if err := m.Stop(ctx, name); err != nil {
			return restart, err
		}
		stopped = append(stopped, name)
	}
	return restart, nil
}

// WaitForPort polls a local TCP port until it accepts a connection or the
// timeout elapses, reporting whether the service came up. Restarted services
// may still be initializing when the orchestrator returns; downstream health
// checks run immediately after and must not race a slow restart.
func WaitForPort(port int, timeout time.Duration) bool {
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprint(port))
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(250 * time.Millisecond)
	}
}
