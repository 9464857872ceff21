// Package agent wires the watcher, debouncer, uploader, retry queue, and
// retry loop into the running sync agent, and guards against two instances
// sharing a watch path the way the teacher guards against concurrent sync.
package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/pgfx-sync/agent/internal/config"
	"github.com/pgfx-sync/agent/internal/debounce"
	"github.com/pgfx-sync/agent/internal/queue"
	"github.com/pgfx-sync/agent/internal/remote"
	"github.com/pgfx-sync/agent/internal/retryloop"
	"github.com/pgfx-sync/agent/internal/telemetry"
	"github.com/pgfx-sync/agent/internal/telemetry/health"
	"github.com/pgfx-sync/agent/internal/upload"
	"github.com/pgfx-sync/agent/internal/watch"
)

// defaultHealthInterval is used when settings carries no positive
// health-check cadence, so the ticker below never panics on a zero
// duration.
const defaultHealthInterval = 60 * time.Second

// cpuSampleWindow bounds how long the health ticker blocks computing a CPU
// percentage delta each pass — short relative to any realistic
// HealthIntervalSeconds.
const cpuSampleWindow = 200 * time.Millisecond

// State is the agent's lifecycle state.
type State string

const (
	Stopped  State = "stopped"
	Starting State = "starting"
	Running  State = "running"
	Stopping State = "stopping"
	Errored  State = "errored"
)

// Agent owns the full pipeline: Watcher -> Debouncer -> Uploader, plus the
// Retry Queue and Retry Loop reconciling what the pipeline couldn't deliver
// immediately.
type Agent struct {
	settings *config.Settings
	logger   *zap.Logger

	lock *flock.Flock

	watcher      *watch.Watcher
	debouncer    *debounce.Debouncer
	uploader     *upload.Uploader
	queue        *queue.Queue
	retryLoop    *retryloop.Loop
	remoteClient *remote.Client

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Agent from settings. The pipeline is assembled but not
// started until Start is called.
func New(settings *config.Settings, logger *zap.Logger) (*Agent, error) {
	q, err := queue.Open(settings.QueueDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening retry queue: %w", err)
	}

	remoteClient := remote.NewClient(settings.RemoteURL, settings.RemoteKey)
	uploader := upload.New(remoteClient, q, logger)

	a := &Agent{
		settings:     settings,
		logger:       logger,
		uploader:     uploader,
		queue:        q,
		retryLoop:    retryloop.New(q, uploader, time.Duration(settings.QueueProcessInterval)*time.Second, settings.MaxRetries, logger),
		remoteClient: remoteClient,
		state:        Stopped,
	}

	a.debouncer = debounce.New(
		time.Duration(settings.DebounceSeconds*float64(time.Second)),
		a.onDebounced,
	)
	a.watcher = watch.New(settings.WatchPath, watch.DefaultPollInterval, logger, a.onEvent)

	return a, nil
}

// lockPath derives the single-instance lock file's path from the watch
// directory, mirroring the teacher's per-repo .sync.lock convention.
func lockPath(watchPath string) string {
	return filepath.Join(watchPath, ".gfxsync.lock")
}

// Start acquires the single-instance lock, runs the watcher's initial scan,
// and launches the polling and retry-loop goroutines. If another agent
// instance already holds the lock for this watch path, it returns an error
// and leaves the agent in the Errored state.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != Stopped {
		a.mu.Unlock()
		return fmt.Errorf("agent: Start called in state %q", a.state)
	}
	a.state = Starting
	a.mu.Unlock()

	a.lock = flock.New(lockPath(a.settings.WatchPath))
	locked, err := a.lock.TryLock()
	if err != nil {
		a.setState(Errored)
		return fmt.Errorf("acquiring single-instance lock: %w", err)
	}
	if !locked {
		a.setState(Errored)
		return fmt.Errorf("another sync agent instance is already watching %s", a.settings.WatchPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.checkHealth(runCtx)

	a.watcher.Start(runCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.retryLoop.Run(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runHealthTicker(runCtx)
	}()

	a.setState(Running)
	if a.logger != nil {
		a.logger.Info("agent started", zap.String("watch_path", a.settings.WatchPath))
	}
	return nil
}

// checkHealth performs the one-time startup health check against the
// remote backend. Failure is informational: it is logged, but Start still
// succeeds and the pipeline still comes up, since an unreachable backend at
// boot is exactly what the retry queue exists to ride out.
func (a *Agent) checkHealth(ctx context.Context) {
	err := a.remoteClient.HealthCheck(ctx)
	if a.logger == nil {
		return
	}
	if err != nil {
		a.logger.Warn("startup health check failed, continuing anyway", zap.Error(err))
		return
	}
	a.logger.Info("startup health check passed")
}

// runHealthTicker logs a periodic structured health event (host CPU,
// memory, and the watch volume's used-disk percentage) until ctx is canceled.
func (a *Agent) runHealthTicker(ctx context.Context) {
	interval := time.Duration(a.settings.HealthIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := health.Collect(ctx, a.settings.WatchPath, cpuSampleWindow)
			if err != nil {
				if a.logger != nil {
					a.logger.Warn("health snapshot failed", zap.Error(err))
				}
				continue
			}
			if a.logger != nil {
				a.logger.Info("health",
					zap.Float64("cpu_percent", snap.CPUPercent),
					zap.Float64("mem_percent", snap.MemPercent),
					zap.Float64("disk_percent", snap.DiskPercent))
			}
		}
	}
}

// Stop halts the watcher and retry loop, waits for their goroutines to
// exit, and releases the single-instance lock. It is safe to call more
// than once.
func (a *Agent) Stop() error {
	a.mu.Lock()
	if a.state != Running {
		a.mu.Unlock()
		return nil
	}
	a.state = Stopping
	a.mu.Unlock()

	a.watcher.Stop()
	a.debouncer.CancelAll()
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	var lockErr error
	if a.lock != nil {
		lockErr = a.lock.Unlock()
	}
	queueErr := a.queue.Close()

	a.setState(Stopped)
	if a.logger != nil {
		a.logger.Info("agent stopped")
	}

	if lockErr != nil {
		return fmt.Errorf("releasing single-instance lock: %w", lockErr)
	}
	return queueErr
}

// State reports the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// onEvent is the watcher's callback: every created/modified/existing event
// hands off to the per-path debouncer without blocking the watcher's
// polling goroutine. The event kind rides along so the eventual upload
// attempt still knows which kind of event triggered it.
func (a *Agent) onEvent(e watch.Event) {
	a.debouncer.Trigger(e.Path, string(e.Kind))
}

// onDebounced is the debouncer's callback, invoked once a path has gone
// quiet for DebounceSeconds, carrying the kind of the last event in the
// burst. It runs the upload attempt on its own goroutine (time.AfterFunc),
// so a slow upload never stalls the debouncer's internal timer
// bookkeeping.
func (a *Agent) onDebounced(path, kind string) {
	ctx := context.Background()
	res := a.uploader.Upload(ctx, path, kind)
	if !res.Success && a.logger != nil {
		a.logger.Error("upload attempt failed",
			zap.String("path", path), zap.String("kind", kind),
			zap.String("error", res.ErrorMessage), zap.Bool("queued", res.Queued))
	}
}

// BuildLogger is a thin re-export so callers assembling an Agent don't need
// to import the telemetry package directly for the common case.
func BuildLogger(level, logPath string) (*zap.Logger, error) {
	return telemetry.BuildLogger(level, logPath)
}
