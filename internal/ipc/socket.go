package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

var ErrAlreadyRunning = errors.New("parley conversation already running")

// RuntimeSocketPath returns the control socket path under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "parley.sock"), nil
}

// ClaimOptions tunes how Acquire handles an existing socket file.
type ClaimOptions struct {
	// ProbeTimeout bounds the status roundtrip used to detect a live owner.
	ProbeTimeout time.Duration
	// Retries is how many extra cleanup rounds may follow the first one
	// before Acquire gives up.
	Retries int
}

// Claim is exclusive ownership of the control socket.
type Claim struct {
	Listener net.Listener

	path    string
	release sync.Once
}

// Path returns the bound socket path.
func (c *Claim) Path() string { return c.path }

// Release closes the listener and unlinks the socket. It is safe to call
// more than once and after Serve has closed the listener.
func (c *Claim) Release() {
	c.release.Do(func() {
		_ = c.Listener.Close()
		_ = os.Remove(c.path)
	})
}

// Acquire binds the control socket at path. A socket left behind by a dead
// owner is removed and the bind retried; a live owner yields
// ErrAlreadyRunning. An owner that accepts but does not answer is left alone.
func Acquire(ctx context.Context, path string, opts ClaimOptions) (*Claim, error) {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 200 * time.Millisecond
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &Claim{Listener: listener, path: path}, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}
		if attempt > opts.Retries {
			return nil, fmt.Errorf("acquire socket %s: still in use after %d retries", path, opts.Retries)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		switch {
		case alive:
			return nil, ErrAlreadyRunning
		case probeErr != nil:
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*attempt) * time.Millisecond):
			}
		}
	}
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || (err != nil && strings.Contains(err.Error(), "address already in use"))
}
