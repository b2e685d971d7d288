package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// X11 samples the active X window with xdotool and idle time with xprintidle.
type X11 struct {
	run      Runner
	clock    func() time.Time
	procRoot string
}

func NewX11(run Runner, clock func() time.Time) *X11 {
	return &X11{run: run, clock: clock, procRoot: "/proc"}
}

func (p *X11) Sample(ctx context.Context, opts Options) (*Sample, error) {
	now := p.clock()

	idleMS, err := p.run(ctx, "xprintidle")
	if err != nil {
		return nil, err
	}
	idle, err := strconv.ParseInt(idleMS, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("probe: parse xprintidle %q: %w", idleMS, err)
	}

	win, err := p.run(ctx, "xdotool", "getactivewindow")
	if err != nil || win == "" {
		// No focused window (e.g. empty desktop).
		return nil, nil
	}

	pid, err := p.run(ctx, "xdotool", "getwindowpid", win)
	if err != nil {
		return nil, err
	}
	comm, err := os.ReadFile(filepath.Join(p.procRoot, pid, "comm"))
	if err != nil {
		return nil, fmt.Errorf("probe: read comm for pid %s: %w", pid, err)
	}
	app := strings.TrimSpace(string(comm))

	s := &Sample{
		Timestamp:   now,
		AppID:       app,
		AppName:     app,
		IdleSeconds: idle / 1000,
	}
	if opts.CaptureWindowTitle {
		title, err := p.run(ctx, "xdotool", "getwindowname", win)
		if err == nil {
			s.WindowTitle = title
		}
	}
	return s, nil
}
