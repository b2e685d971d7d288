package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sadopc/toki/internal/ipc"
)

const (
	startTimeout = 5 * time.Second
	stopGrace    = 15 * time.Second
)

// Spawn starts `<self> daemon run` detached from the terminal, with its
// output appended to the log file, and waits for the socket to come up.
// extraArgs are passed through to the child.
func Spawn(f Files, extraArgs ...string) (int, error) {
	if err := f.CleanupStale(); err != nil {
		return 0, err
	}
	if pid, alive := f.Running(); alive {
		if socketReachable(f.Socket) {
			return pid, ErrAlreadyRunning
		}
		return pid, fmt.Errorf("%w: pid %d is alive but socket is unavailable", ErrAlreadyRunning, pid)
	}

	execPath, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Log), 0o755); err != nil {
		return 0, fmt.Errorf("create daemon log dir: %w", err)
	}
	logFile, err := os.OpenFile(f.Log, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()

	args := append([]string{"daemon", "run"}, extraArgs...)
	cmd := exec.Command(execPath, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()

	if err := waitForSocket(f.Socket, startTimeout); err != nil {
		return pid, fmt.Errorf("daemon did not start (see %s): %w", f.Log, err)
	}
	return pid, nil
}

// Stop asks the daemon to shut down over IPC and waits for it to exit,
// falling back to SIGTERM and finally SIGKILL.
func Stop(ctx context.Context, f Files) error {
	pid, err := f.ReadPID()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			_ = os.Remove(f.Socket)
			return nil
		}
		return err
	}
	if !processAlive(pid) {
		f.removeAll()
		return nil
	}

	if err := ipc.NewClient(f.Socket).Shutdown(ctx); err == nil {
		if waitExit(pid, stopGrace) {
			f.removeAll()
			return nil
		}
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("stop daemon pid=%d: %w", pid, err)
	}
	if !waitExit(pid, 2*time.Second) {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	f.removeAll()
	return nil
}

func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !processAlive(pid)
}
