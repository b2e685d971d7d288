package probe

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const frontmostScript = `tell application "System Events"
	set frontProc to first application process whose frontmost is true
	set bundleId to bundle identifier of frontProc
	set appName to name of frontProc
	set winTitle to ""
	if includeTitle then
		try
			set winTitle to name of first window of frontProc
		end try
	end if
	return bundleId & "|" & appName & "|" & winTitle
end tell`

var hidIdleRe = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)

// Darwin samples the frontmost process through System Events and idle time
// from the IOHIDSystem registry entry.
type Darwin struct {
	run   Runner
	clock func() time.Time
}

func NewDarwin(run Runner, clock func() time.Time) *Darwin {
	return &Darwin{run: run, clock: clock}
}

func (p *Darwin) Sample(ctx context.Context, opts Options) (*Sample, error) {
	now := p.clock()

	reg, err := p.run(ctx, "ioreg", "-c", "IOHIDSystem")
	if err != nil {
		return nil, err
	}
	m := hidIdleRe.FindStringSubmatch(reg)
	if m == nil {
		return nil, fmt.Errorf("probe: HIDIdleTime not found")
	}
	idleNS, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("probe: parse HIDIdleTime: %w", err)
	}

	script := "set includeTitle to " + strconv.FormatBool(opts.CaptureWindowTitle) + "\n" + frontmostScript
	out, err := p.run(ctx, "osascript", "-e", script)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(out, "|", 3)
	if len(parts) < 2 || parts[0] == "" {
		return nil, nil
	}

	s := &Sample{
		Timestamp:   now,
		AppID:       parts[0],
		AppName:     parts[1],
		IdleSeconds: idleNS / int64(time.Second),
	}
	if opts.CaptureWindowTitle && len(parts) == 3 {
		s.WindowTitle = parts[2]
	}
	return s, nil
}
