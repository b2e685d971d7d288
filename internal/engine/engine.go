// Package engine runs the tracking loop: sample, classify, detect, coalesce,
// persist. One goroutine owns all mutable tracking state; IPC readers only
// see the published snapshot.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/detector"
	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/metrics"
	"github.com/sadopc/toki/internal/probe"
	"github.com/sadopc/toki/internal/session"
	"github.com/sadopc/toki/internal/span"
	"github.com/sadopc/toki/internal/store"
)

var retryInterval = 50 * time.Millisecond

// Store is the persistence the engine writes through.
type Store interface {
	session.Store
	classifier.RuleStore
	LoadSettings() (store.Settings, error)
	InsertSpan(sp *store.Span) error
	GetOrCreateProject(name, path string) (*store.Project, error)
	UpsertWorkItem(externalID, system, projectID string) (*store.WorkItem, error)
	CloseDanglingSession() (*store.Session, error)
}

type Options struct {
	Tick       time.Duration
	MinSpan    time.Duration
	WorkingDir string
	MaxPending int
	Clock      func() time.Time
}

func (o *Options) defaults() {
	if o.Tick <= 0 {
		o.Tick = 10 * time.Second
	}
	if o.MinSpan <= 0 {
		o.MinSpan = o.Tick
	}
	if o.MaxPending <= 0 {
		o.MaxPending = 256
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// write is one storage operation. A close without a span still ends the
// session; a span without a close is a plain insert.
type write struct {
	span  *store.Span
	close *store.SessionClose
}

type snapshot struct {
	window       string
	issue        string
	sessionID    string
	sessionStart time.Time
	lastTick     time.Time
}

type Engine struct {
	st    Store
	probe probe.Probe
	cls   *classifier.Classifier
	det   *detector.Detector
	mgr   *session.Manager
	coal  *span.Coalescer
	m     *metrics.Metrics
	log   zerolog.Logger
	opts  Options

	settings store.Settings
	pending  []write

	snap     atomic.Pointer[snapshot]
	shutdown atomic.Bool
	stopped  atomic.Bool
	wake     chan struct{}
}

// New builds an engine and closes any session a previous run left open.
func New(st Store, p probe.Probe, m *metrics.Metrics, log zerolog.Logger, opts Options) (*Engine, error) {
	opts.defaults()
	log = log.With().Str("component", "engine").Logger()

	if sess, err := st.CloseDanglingSession(); err != nil {
		return nil, fmt.Errorf("close dangling session: %w", err)
	} else if sess != nil {
		log.Info().Str("session", sess.ID).Msg("closed session left open by previous run")
	}
	settings, err := st.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	cls, err := classifier.New(st, log)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}

	e := &Engine{
		st:       st,
		probe:    p,
		cls:      cls,
		det:      detector.New(log),
		mgr:      session.NewManager(st, thresholdsOf(settings), hoursOf(settings)),
		coal:     span.New(opts.MinSpan),
		m:        m,
		log:      log,
		opts:     opts,
		settings: settings,
		wake:     make(chan struct{}, 1),
	}
	e.snap.Store(&snapshot{lastTick: opts.Clock()})
	return e, nil
}

// WithDetector replaces the work-context detector.
func (e *Engine) WithDetector(d *detector.Detector) *Engine {
	e.det = d
	return e
}

// Run ticks until ctx is cancelled or a shutdown is requested, then closes
// the open span and session and flushes pending writes.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stopped.Store(true)
	ticker := time.NewTicker(e.opts.Tick)
	defer ticker.Stop()

	for !e.shutdown.Load() {
		e.Tick(ctx, e.opts.Clock())
		if e.shutdown.Load() {
			break
		}
		select {
		case <-ctx.Done():
			e.shutdown.Store(true)
		case <-e.wake:
		case <-ticker.C:
		}
	}
	e.finish(e.opts.Clock())
	if n := len(e.pending); n > 0 {
		return fmt.Errorf("%d writes could not be saved", n)
	}
	e.log.Info().Msg("engine stopped")
	return nil
}

// RequestShutdown sets the shutdown flag and wakes the loop.
func (e *Engine) RequestShutdown() {
	e.shutdown.Store(true)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Status reports the last published snapshot. Running is false once the
// loop has exited or when no tick has completed for three intervals.
func (e *Engine) Status() ipc.Status {
	s := e.snap.Load()
	now := e.opts.Clock()
	st := ipc.Status{
		Running:       !e.stopped.Load() && now.Sub(s.lastTick) <= 3*e.opts.Tick,
		CurrentWindow: s.window,
		CurrentIssue:  s.issue,
		SessionID:     s.sessionID,
		Metrics:       e.m.Snapshot(),
	}
	if !s.sessionStart.IsZero() {
		st.SessionDurationSeconds = int64(now.Sub(s.sessionStart) / time.Second)
	}
	return st
}

// Tick runs one iteration of the loop at now.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	outcome := e.tick(ctx, now)
	e.m.Ticks.WithLabelValues(outcome).Inc()
	e.m.PendingSpans.Set(float64(len(e.pending)))
}

func (e *Engine) tick(ctx context.Context, now time.Time) string {
	e.flush()

	if st, err := e.st.LoadSettings(); err != nil {
		e.log.Warn().Err(err).Msg("load settings; keeping previous")
	} else {
		e.settings = st
	}
	e.mgr.Configure(thresholdsOf(e.settings), hoursOf(e.settings))

	if e.settings.PauseTracking {
		e.endSession(now, e.coal.Pause())
		e.publish(now, "", "")
		return metrics.OutcomePaused
	}

	sctx, cancel := context.WithTimeout(ctx, e.opts.Tick)
	s, err := e.probe.Sample(sctx, probe.Options{CaptureWindowTitle: e.settings.CaptureWindowTitle})
	cancel()
	if err != nil {
		e.log.Debug().Err(err).Msg("sample dropped")
		e.publish(now, "", "")
		return metrics.OutcomeError
	}
	if s == nil {
		e.publish(now, "", "")
		return metrics.OutcomeNoSample
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = now
	}

	if excluded(s.AppID, e.settings.ExcludedApps) {
		e.persist(write{span: e.coal.Pause()})
		e.publish(now, "", "")
		return metrics.OutcomeExcluded
	}

	state := e.mgr.Thresholds().State(s.IdleSeconds)
	e.mgr.Observe(state, e.opts.Tick)
	if state.EndsSession() && e.mgr.Current() != nil {
		e.endSession(s.Timestamp, e.coal.CloseAt(s.Timestamp))
		e.publish(now, "", "")
		return metrics.OutcomeBreak
	}
	if state.PausesRecording() {
		e.persist(write{span: e.coal.Pause()})
		e.publish(now, "", "")
		return metrics.OutcomeBreak
	}

	if e.mgr.Current() != nil && e.mgr.ShouldEnd(s.IdleSeconds, s.Timestamp) {
		e.endSession(s.Timestamp, e.coal.CloseAt(s.Timestamp))
	}
	if e.mgr.ShouldStart(s.Timestamp) {
		if sess, err := e.mgr.Open(s.Timestamp); err != nil {
			e.log.Warn().Err(err).Msg("open session")
		} else {
			e.m.Sessions.Inc()
			e.log.Info().Str("session", sess.ID).Msg("session started")
		}
	}

	enriched := e.enrich(ctx, s)
	e.persist(write{span: e.coal.Offer(enriched)})

	window := s.WindowTitle
	if window == "" {
		window = s.AppName
	}
	e.publish(now, window, enriched.WorkItemRef)
	return metrics.OutcomeRecorded
}

func (e *Engine) enrich(ctx context.Context, s *probe.Sample) span.Enriched {
	if err := e.cls.Reload(); err != nil {
		e.log.Warn().Err(err).Msg("reload rules")
	}
	res := e.cls.Classify(s.AppID, s.WindowTitle)
	e.m.RuleHits.WithLabelValues(string(res.Source)).Inc()

	out := span.Enriched{
		Timestamp:   s.Timestamp,
		AppID:       s.AppID,
		AppName:     s.AppName,
		WindowTitle: s.WindowTitle,
		IdleSeconds: s.IdleSeconds,
		Category:    res.Category,
		Source:      string(res.Source),
	}
	if sess := e.mgr.Current(); sess != nil {
		out.SessionID = sess.ID
	}

	dir := e.opts.WorkingDir
	if dir == "" {
		dir = e.det.WorkingDir(s.WindowTitle)
	}
	if dir != "" {
		p, err := e.st.GetOrCreateProject(filepath.Base(dir), dir)
		if err != nil {
			e.log.Warn().Err(err).Str("dir", dir).Msg("resolve project")
		} else {
			out.ProjectID = p.ID
		}
	}

	dctx, cancel := context.WithTimeout(ctx, e.opts.Tick)
	defer cancel()
	if ref := e.det.Detect(dctx, dir, s.WindowTitle); ref != nil {
		out.WorkItemRef = ref.ID
		wi, err := e.st.UpsertWorkItem(ref.ID, string(ref.Source), out.ProjectID)
		if err != nil {
			e.log.Warn().Err(err).Str("issue", ref.ID).Msg("resolve work item")
		} else {
			out.WorkItemID = wi.ID
		}
	}
	return out
}

// endSession closes the live session at now with final as its last span.
// Without a live session final is written on its own.
func (e *Engine) endSession(now time.Time, final *store.Span) {
	c, ok := e.mgr.Pending(now)
	if !ok {
		e.persist(write{span: final})
		return
	}
	e.mgr.Detach()
	e.persist(write{span: final, close: &c})
	e.log.Info().Str("session", c.ID).Time("ended_at", now).Msg("session ended")
}

// finish closes everything at now. It runs once, after the loop exits.
func (e *Engine) finish(now time.Time) {
	e.endSession(now, e.coal.CloseAt(now))
	e.flush()
	if n := len(e.pending); n > 0 {
		e.log.Error().Int("pending", n).Msg("unsaved writes lost at shutdown")
	}
	e.publish(now, "", "")
}

// persist writes w after anything already pending, so spans reach storage
// in the order they closed.
func (e *Engine) persist(w write) {
	if w.span == nil && w.close == nil {
		return
	}
	e.flush()
	if len(e.pending) > 0 {
		e.enqueue(w)
		return
	}
	if err := e.apply(w); err != nil {
		e.log.Warn().Err(err).Msg("write failed twice; holding in memory")
		e.enqueue(w)
	}
}

func (e *Engine) flush() {
	for len(e.pending) > 0 {
		if err := e.apply(e.pending[0]); err != nil {
			e.log.Debug().Err(err).Int("pending", len(e.pending)).Msg("flush pending writes")
			return
		}
		e.pending = e.pending[1:]
	}
}

func (e *Engine) enqueue(w write) {
	if len(e.pending) >= e.opts.MaxPending {
		e.pending = e.pending[1:]
		e.m.SpansDropped.Inc()
		e.log.Error().Int("max", e.opts.MaxPending).Msg("pending queue full; dropped oldest write")
	}
	e.pending = append(e.pending, w)
}

// apply runs one write, retrying once.
func (e *Engine) apply(w write) error {
	op := func() error {
		if w.close != nil {
			_, err := e.st.CloseSession(*w.close, w.span)
			return err
		}
		return e.st.InsertSpan(w.span)
	}
	notify := func(err error, _ time.Duration) {
		e.m.StoreRetries.Inc()
		e.log.Warn().Err(err).Msg("storage write failed; retrying")
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), 1)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return err
	}
	if w.span != nil {
		e.m.SpansWritten.Inc()
	}
	return nil
}

func (e *Engine) publish(now time.Time, window, issue string) {
	s := &snapshot{window: window, issue: issue, lastTick: now}
	if sess := e.mgr.Current(); sess != nil {
		s.sessionID = sess.ID
		s.sessionStart = sess.StartedAt
	}
	e.snap.Store(s)
}

// excluded matches in both directions so "slack" excludes
// "com.tinyspeck.slackmacgap" and "com.apple.Safari" excludes "Safari".
func excluded(appID string, list []string) bool {
	if appID == "" {
		return false
	}
	id := strings.ToLower(appID)
	for _, x := range list {
		x = strings.ToLower(strings.TrimSpace(x))
		if x == "" {
			continue
		}
		if strings.Contains(id, x) || strings.Contains(x, id) {
			return true
		}
	}
	return false
}

func thresholdsOf(st store.Settings) session.Thresholds {
	return session.Thresholds{
		Short: int64(st.ShortBreakSeconds),
		Long:  int64(st.LongBreakSeconds),
		Away:  int64(st.AwaySeconds),
	}
}

func hoursOf(st store.Settings) session.WorkHours {
	return session.WorkHours{Start: st.WorkStartHour, End: st.WorkEndHour}
}
