// Package daemon manages the background engine process: its pid file,
// socket, log, and the start/stop/run lifecycle.
package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sadopc/toki/internal/config"
)

var ErrAlreadyRunning = errors.New("daemon already running")

// Files are the runtime artifacts of one data directory.
type Files struct {
	PID    string
	Socket string
	Log    string
}

func FilesFor(cfg *config.Config) Files {
	return Files{PID: cfg.PIDPath(), Socket: cfg.SocketPath(), Log: cfg.LogPath()}
}

func (f Files) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(f.PID), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	return os.WriteFile(f.PID, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPID returns the recorded pid. A missing file yields os.ErrNotExist.
func (f Files) ReadPID() (int, error) {
	data, err := os.ReadFile(f.PID)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", f.PID, err)
	}
	return pid, nil
}

func (f Files) ClearPID() error {
	if err := os.Remove(f.PID); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Running reports the recorded pid and whether that process is alive.
func (f Files) Running() (int, bool) {
	pid, err := f.ReadPID()
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}

// CleanupStale removes a pid file whose process is gone and a socket nobody
// is listening on.
func (f Files) CleanupStale() error {
	pid, err := f.ReadPID()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			_ = f.ClearPID()
		}
	} else if !processAlive(pid) {
		_ = f.ClearPID()
		_ = os.Remove(f.Socket)
	}

	if _, statErr := os.Stat(f.Socket); statErr == nil {
		if !socketReachable(f.Socket) {
			if removeErr := os.Remove(f.Socket); removeErr != nil && !os.IsNotExist(removeErr) {
				return fmt.Errorf("remove stale daemon socket: %w", removeErr)
			}
		}
	}
	return nil
}

// removeAll drops the pid file and socket on graceful exit.
func (f Files) removeAll() {
	_ = f.ClearPID()
	_ = os.Remove(f.Socket)
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if socketReachable(path) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon socket not ready: %s", path)
}

func socketReachable(path string) bool {
	conn, err := net.DialTimeout("unix", path, 150*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
