// Package probe reads the foreground application and input idle time.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrUnsupported = errors.New("probe: unsupported platform")

// Sample is one observation of the foreground application.
type Sample struct {
	Timestamp   time.Time
	AppID       string
	AppName     string
	WindowTitle string
	IdleSeconds int64
}

type Options struct {
	CaptureWindowTitle bool
}

// Probe returns the current sample, or nil when no foreground application
// can be determined. Implementations stamp identity and idle time with one
// timestamp.
type Probe interface {
	Sample(ctx context.Context, opts Options) (*Sample, error)
}

// Kind names a probe implementation.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindLinux  Kind = "linux"
	KindDarwin Kind = "darwin"
	KindStatic Kind = "static"
)

// New selects a probe by kind. "auto" picks the one for the running OS.
func New(kind Kind, clock func() time.Time) (Probe, error) {
	if clock == nil {
		clock = time.Now
	}
	if kind == "" || kind == KindAuto {
		kind = Kind(runtime.GOOS)
	}
	switch kind {
	case KindLinux:
		return NewX11(execRunner, clock), nil
	case KindDarwin:
		return NewDarwin(execRunner, clock), nil
	case KindStatic:
		return NewStatic(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
}

// Runner executes a helper program and returns its trimmed stdout.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("probe: %s: %s", name, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("probe: %s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CheckAvailable reports an error when the helper programs a probe needs are
// not on PATH.
func CheckAvailable(kind Kind) error {
	if kind == "" || kind == KindAuto {
		kind = Kind(runtime.GOOS)
	}
	var tools []string
	switch kind {
	case KindLinux:
		tools = []string{"xdotool", "xprintidle"}
	case KindDarwin:
		tools = []string{"osascript", "ioreg"}
	case KindStatic:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	for _, t := range tools {
		if _, err := exec.LookPath(t); err != nil {
			return fmt.Errorf("probe: %s not found on PATH", t)
		}
	}
	return nil
}
