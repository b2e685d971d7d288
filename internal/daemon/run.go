package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sadopc/toki/internal/config"
	"github.com/sadopc/toki/internal/engine"
	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/metrics"
	"github.com/sadopc/toki/internal/probe"
	"github.com/sadopc/toki/internal/store"
)

// OpenStore opens the configured database, using the key file when
// encryption is enabled or a key already exists.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	var (
		key string
		err error
	)
	if cfg.Encrypt {
		key, err = store.LoadOrCreateKey(cfg.KeyPath())
	} else {
		key, err = store.LoadKey(cfg.KeyPath())
	}
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DBPath(), key)
}

// Run is the foreground daemon: it claims the pid file, serves IPC, and
// runs the engine until a shutdown request or SIGINT/SIGTERM. Store,
// bind, and probe failures are returned; a clean stop returns nil.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	f := FilesFor(cfg)
	if err := f.CleanupStale(); err != nil {
		return err
	}
	if pid, alive := f.Running(); alive && pid != os.Getpid() && socketReachable(f.Socket) {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	kind := probe.Kind(cfg.Probe)
	if err := probe.CheckAvailable(kind); err != nil {
		return fmt.Errorf("probe init: %w", err)
	}
	p, err := probe.New(kind, nil)
	if err != nil {
		return fmt.Errorf("probe init: %w", err)
	}

	st, err := OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	eng, err := engine.New(st, p, metrics.New(), log, engine.Options{
		Tick:       cfg.TickInterval,
		WorkingDir: cfg.WorkingDir,
		MaxPending: cfg.MaxPendingSpans,
	})
	if err != nil {
		return err
	}

	if err := f.WritePID(os.Getpid()); err != nil {
		return err
	}
	defer f.removeAll()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ipcCtx, cancelIPC := context.WithCancel(ctx)
	defer cancelIPC()

	ipcErr := make(chan error, 1)
	go func() { ipcErr <- ipc.Serve(ipcCtx, f.Socket, eng, log) }()

	engErr := make(chan error, 1)
	engCtx, cancelEngine := context.WithCancel(ctx)
	defer cancelEngine()
	go func() { engErr <- eng.Run(engCtx) }()

	log.Info().
		Int("pid", os.Getpid()).
		Str("socket", f.Socket).
		Dur("tick", cfg.TickInterval).
		Bool("encrypted", st.Encrypted()).
		Msg("daemon started")

	select {
	case err := <-engErr:
		cancelIPC()
		<-ipcErr
		return err
	case err := <-ipcErr:
		cancelEngine()
		runErr := <-engErr
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("ipc: %w", errors.Join(err, runErr))
		}
		return runErr
	}
}
