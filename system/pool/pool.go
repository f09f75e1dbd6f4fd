package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/r3e-network/algoserver/domain/execution"
	"github.com/r3e-network/algoserver/infrastructure/metrics"
)

// Config configures a Pool.
type Config struct {
	// Size is the fixed number of worker processes.
	Size int
	// AdmitCapacity bounds how many Submit calls may be in flight
	// (queued-or-executing) at once, independent of Size: requests past
	// this point are rejected rather than queued indefinitely. Defaults
	// to Size when <= 0, i.e. no queuing beyond one task per worker.
	AdmitCapacity int
	// BinaryPath re-execs as the worker; normally os.Executable().
	BinaryPath string
	// WorkerArgs are appended after --worker-fd when spawning a worker (e.g.
	// module/config directory flags the child needs to rebuild the registry).
	WorkerArgs []string
	// KillTree, if true, signals the worker's whole process group rather
	// than just its pid.
	KillTree bool
	// KillGrace is how long to wait after SIGTERM before escalating to
	// SIGKILL.
	KillGrace time.Duration
	// SupervisorTick is how often the supervisor scans for expired
	// deadlines. Defaults to 50ms.
	SupervisorTick time.Duration
	// Metrics, if non-nil, receives pool gauges/counters.
	Metrics *metrics.Metrics
}

type pendingTask struct {
	workerIndex int
	resultCh    chan resultMessage
	crashCh     chan error
	deadline    time.Time
}

// workerEvent is what a per-worker resultListener goroutine publishes to the
// pool's central dispatch loop.
type workerEvent struct {
	workerIndex int
	msg         resultMessage
	err         error
}

// Pool is the supervised worker pool (C6): a fixed array of OS-process
// workers, a pending-task table, a result demultiplexer, and a supervisor
// that reclaims workers on hard timeout or crash. Grounded on the watchdog/
// heartbeat pattern for subprocess supervision (kill on deadline, report PID
// and elapsed time), generalized here from a single long-lived subprocess to
// a fixed pool of short-task workers.
type Pool struct {
	cfg Config
	log *logrus.Entry

	workers     []*worker
	idleWorkers chan int
	admit       chan struct{}

	mu      sync.Mutex
	pending map[string]*pendingTask

	events chan workerEvent
	stopCh chan struct{}
	wg     sync.WaitGroup

	started     bool
	lifecycleMu sync.Mutex // guards started/shutdown, separate from pending's mu
}

// New builds a Pool from cfg without starting it.
func New(cfg Config) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 5 * time.Second
	}
	if cfg.SupervisorTick <= 0 {
		cfg.SupervisorTick = 50 * time.Millisecond
	}
	if cfg.AdmitCapacity <= 0 {
		cfg.AdmitCapacity = cfg.Size
	}
	return &Pool{
		cfg:         cfg,
		log:         logrus.WithField("component", "pool"),
		idleWorkers: make(chan int, cfg.Size),
		admit:       make(chan struct{}, cfg.AdmitCapacity),
		pending:     make(map[string]*pendingTask),
		events:      make(chan workerEvent, cfg.Size*2),
		stopCh:      make(chan struct{}),
	}
}

// Start spawns every worker and launches the supervisor/listener goroutines.
// A partial spawn failure tears down everything already started.
func (p *Pool) Start() error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	if p.started {
		return nil
	}

	p.workers = make([]*worker, p.cfg.Size)
	for i := 0; i < p.cfg.Size; i++ {
		w, err := spawnWorker(i, p.cfg.BinaryPath, p.cfg.WorkerArgs)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = p.workers[j].kill(p.cfg.KillTree)
			}
			return fmt.Errorf("pool: start worker %d: %w", i, err)
		}
		p.workers[i] = w
		p.idleWorkers <- i
	}

	for i := range p.workers {
		p.wg.Add(1)
		go p.resultListener(i)
	}
	p.wg.Add(1)
	go p.supervisor()

	p.started = true
	p.log.WithField("size", p.cfg.Size).Info("worker pool started")
	return nil
}

// IsStarted reports whether Start has completed successfully.
func (p *Pool) IsStarted() bool {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	return p.started
}

// Stats is a snapshot of pool occupancy for the /healthz domain check.
type Stats struct {
	Size    int
	Idle    int
	Pending int
	Started bool
}

// Stats reports how many workers are configured, idle, and currently
// occupied by a pending task, for the health checker to judge starvation.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	pending := len(p.pending)
	p.mu.Unlock()

	return Stats{
		Size:    p.cfg.Size,
		Idle:    len(p.idleWorkers),
		Pending: pending,
		Started: p.IsStarted(),
	}
}

// resultListener continuously reads result messages off one worker's pipe
// and republishes them on the shared events channel. It exits when the
// worker's pipe closes (crash, or deliberate shutdown kill).
func (p *Pool) resultListener(index int) {
	defer p.wg.Done()
	w := p.workers[index]
	for {
		msg, err := w.recv()
		select {
		case p.events <- workerEvent{workerIndex: index, msg: msg, err: err}:
		case <-p.stopCh:
			return
		}
		if err != nil {
			return
		}
	}
}

// supervisor is the single goroutine that (a) drains the events channel,
// completing pending tasks and freeing workers, and (b) periodically scans
// pending for expired deadlines, killing and respawning the offending
// worker (hard timeout reclaims the worker; crash is reported
// the same way via the events channel's err branch).
func (p *Pool) supervisor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.SupervisorTick)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case ev := <-p.events:
			p.handleEvent(ev)
		case <-ticker.C:
			p.reclaimExpired()
		}
	}
}

func (p *Pool) handleEvent(ev workerEvent) {
	if ev.err != nil {
		p.handleCrash(ev.workerIndex, ev.err)
		return
	}

	p.mu.Lock()
	pt, ok := p.pending[ev.msg.TaskID]
	if ok {
		delete(p.pending, ev.msg.TaskID)
	}
	p.mu.Unlock()

	if !ok {
		// Result for a task the supervisor already gave up on (timed out,
		// then the worker finished anyway): drop it, the caller has moved on.
		p.returnWorkerIdle(ev.workerIndex)
		return
	}
	pt.resultCh <- ev.msg
	p.returnWorkerIdle(ev.workerIndex)
}

func (p *Pool) handleCrash(index int, cause error) {
	p.mu.Lock()
	var victim *pendingTask
	var taskID string
	for id, pt := range p.pending {
		if pt.workerIndex == index {
			victim = pt
			taskID = id
			break
		}
	}
	if victim != nil {
		delete(p.pending, taskID)
	}
	p.mu.Unlock()

	if victim != nil {
		victim.crashCh <- cause
	}

	p.respawn(index, "crash")
}

// reclaimExpired kills and respawns any worker whose in-flight task has
// exceeded its deadline.
func (p *Pool) reclaimExpired() {
	now := time.Now()

	p.mu.Lock()
	var expired []struct {
		taskID string
		pt     *pendingTask
	}
	for id, pt := range p.pending {
		if !pt.deadline.IsZero() && now.After(pt.deadline) {
			expired = append(expired, struct {
				taskID string
				pt     *pendingTask
			}{id, pt})
		}
	}
	for _, e := range expired {
		delete(p.pending, e.taskID)
	}
	p.mu.Unlock()

	for _, e := range expired {
		e.pt.crashCh <- fmt.Errorf("task %s exceeded deadline", e.taskID)
		p.killAndRespawn(e.pt.workerIndex)
	}
}

func (p *Pool) killAndRespawn(index int) {
	w := p.workers[index]
	if err := w.killGraceful(p.cfg.KillTree, p.cfg.KillGrace); err != nil {
		p.log.WithError(err).WithField("worker", index).Warn("error killing worker")
	}
	p.respawn(index, "timeout")
}

func (p *Pool) respawn(index int, reason string) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordWorkerRestart(reason)
	}

	w, err := spawnWorker(index, p.cfg.BinaryPath, p.cfg.WorkerArgs)
	if err != nil {
		p.log.WithError(err).WithField("worker", index).Error("failed to respawn worker, pool capacity reduced")
		return
	}
	p.lifecycleMu.Lock()
	p.workers[index] = w
	p.lifecycleMu.Unlock()

	p.wg.Add(1)
	go p.resultListener(index)

	p.log.WithFields(logrus.Fields{"worker": index, "reason": reason, "pid": w.pid}).Info("worker respawned")
	p.returnWorkerIdle(index)
}

func (p *Pool) returnWorkerIdle(index int) {
	select {
	case p.idleWorkers <- index:
	default:
	}
}

// Submit runs one task to completion. It blocks until the task finishes,
// times out, the worker crashes, or ctx is cancelled before a worker could
// be admitted. A saturated pool returns an ErrorRejected result immediately
// rather than queuing unboundedly ("rejection under load").
func (p *Pool) Submit(ctx context.Context, req *execution.Request) (execution.Result, error) {
	select {
	case p.admit <- struct{}{}:
	default:
		return rejectedResult(req), nil
	}
	defer func() { <-p.admit }()

	var index int
	select {
	case index = <-p.idleWorkers:
	case <-ctx.Done():
		return execution.Result{}, ctx.Err()
	}

	w := p.workers[index]

	taskID := uuid.NewString()
	timeout := req.EffectiveTimeout()

	inputDump := req.Payload
	contextDump, err := marshalContext(req.Context)
	if err != nil {
		p.returnWorkerIdle(index)
		return errorResult(execution.ErrorSystem, err.Error()), nil
	}

	entrypointRef := req.Spec.Name + "@" + req.Spec.Version

	pt := &pendingTask{
		workerIndex: index,
		resultCh:    make(chan resultMessage, 1),
		crashCh:     make(chan error, 1),
	}
	if timeout > 0 {
		pt.deadline = time.Now().Add(timeout)
	}

	p.mu.Lock()
	p.pending[taskID] = pt
	p.mu.Unlock()

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordTaskSubmitted(req.Spec.Name, req.Spec.Version)
	}

	startedAt := time.Now()
	if err := w.send(taskMessage{
		TaskID:          taskID,
		EntrypointRef:   entrypointRef,
		InputDump:       inputDump,
		HyperparamsDump: req.Hyperparams,
		RequestID:       req.RequestID,
		TraceID:         req.TraceID,
		Context:         contextDump,
		RequestDatetime: req.RequestDatetime,
		Stateful:        req.Spec.Execution.Stateful || req.Spec.IsClass,
	}); err != nil {
		p.mu.Lock()
		delete(p.pending, taskID)
		p.mu.Unlock()
		return errorResult(execution.ErrorSystem, fmt.Sprintf("send task to worker: %v", err)), nil
	}

	var waitCtx <-chan struct{}
	if ctx != nil {
		waitCtx = ctx.Done()
	}

	select {
	case msg := <-pt.resultCh:
		res := resultFromMessage(msg, startedAt)
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordTaskCompleted(req.Spec.Name, req.Spec.Version, taskStatusLabel(res), time.Since(startedAt))
		}
		return res, nil
	case err := <-pt.crashCh:
		res := errorResult(execution.ErrorRuntime, err.Error())
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordTaskCompleted(req.Spec.Name, req.Spec.Version, "crashed", time.Since(startedAt))
		}
		return res, nil
	case <-waitCtx:
		return execution.Result{}, ctx.Err()
	}
}

func taskStatusLabel(res execution.Result) string {
	if res.Success {
		return "success"
	}
	return string(res.Err.Kind)
}

// Shutdown stops accepting work and tears down every worker. If wait is
// true, it first waits (best-effort, briefly) for in-flight tasks to drain.
func (p *Pool) Shutdown(wait bool) error {
	p.lifecycleMu.Lock()
	if !p.started {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.started = false
	p.lifecycleMu.Unlock()

	if wait {
		deadline := time.Now().Add(p.cfg.KillGrace)
		for time.Now().Before(deadline) {
			p.mu.Lock()
			n := len(p.pending)
			p.mu.Unlock()
			if n == 0 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	close(p.stopCh)
	for _, w := range p.workers {
		_ = w.killGraceful(p.cfg.KillTree, p.cfg.KillGrace)
	}
	p.wg.Wait()
	return nil
}
