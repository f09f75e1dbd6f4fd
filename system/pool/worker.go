package pool

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// workerState tracks a worker process's place in the pool lifecycle.
type workerState int

const (
	workerStarting workerState = iota
	workerIdle
	workerBusy
	workerKilling
	workerDead
)

// worker wraps one supervised OS process and the pipe pair used to talk to
// it. The pool's Submit writes tasks to it directly (only while holding the
// worker's idle slot), and one resultListener goroutine reads its results.
type worker struct {
	index int
	cmd   *exec.Cmd
	pid   int

	enc *json.Encoder
	dec *json.Decoder

	toWorker   *os.File // write end, parent side
	fromWorker *os.File // read end, parent side

	state    workerState
	taskID   string
	deadline time.Time // zero if no task is in flight
}

// spawnWorker re-execs the current binary in worker mode (binaryPath; the
// --worker-fd=3:4 flag tells the child which fd pair to read/write on) and completes
// the readiness handshake before returning. Grounded on the re-exec-self
// pattern used by single-binary CLIs that need an isolated child process,
// adapted here to hand the child a dedicated pipe pair instead of inheriting
// stdio (SPEC_FULL.md §4.5, "wire protocol").
func spawnWorker(index int, binaryPath string, extraArgs []string) (*worker, error) {
	parentToChildR, parentToChildW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d: create input pipe: %w", index, err)
	}
	childToParentR, childToParentW, err := os.Pipe()
	if err != nil {
		_ = parentToChildR.Close()
		_ = parentToChildW.Close()
		return nil, fmt.Errorf("worker %d: create output pipe: %w", index, err)
	}

	args := append([]string{"--worker-fd=3:4"}, extraArgs...)
	cmd := exec.Command(binaryPath, args...)
	cmd.ExtraFiles = []*os.File{parentToChildR, childToParentW}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = parentToChildR.Close()
		_ = parentToChildW.Close()
		_ = childToParentR.Close()
		_ = childToParentW.Close()
		return nil, fmt.Errorf("worker %d: start: %w", index, err)
	}

	// The parent only holds the opposite ends; the child's copies (inherited
	// across fork/exec) must be closed here or the pipe never sees EOF.
	_ = parentToChildR.Close()
	_ = childToParentW.Close()

	w := &worker{
		index:      index,
		cmd:        cmd,
		pid:        cmd.Process.Pid,
		enc:        json.NewEncoder(parentToChildW),
		dec:        json.NewDecoder(bufio.NewReader(childToParentR)),
		toWorker:   parentToChildW,
		fromWorker: childToParentR,
		state:      workerStarting,
	}

	var ready readyMessage
	if err := w.dec.Decode(&ready); err != nil {
		_ = w.kill(true)
		return nil, fmt.Errorf("worker %d: readiness handshake: %w", index, err)
	}
	if !ready.Ready {
		_ = w.kill(true)
		return nil, fmt.Errorf("worker %d: readiness handshake reported not-ready", index)
	}

	w.state = workerIdle
	return w, nil
}

// send writes one task message to the worker's input pipe.
func (w *worker) send(msg taskMessage) error {
	return w.enc.Encode(msg)
}

// recv blocks for the worker's next result message (or the EOF/error that
// means the worker died).
func (w *worker) recv() (resultMessage, error) {
	var msg resultMessage
	if err := w.dec.Decode(&msg); err != nil {
		if err == io.EOF {
			return msg, fmt.Errorf("worker %d (pid %d): pipe closed", w.index, w.pid)
		}
		return msg, fmt.Errorf("worker %d (pid %d): decode result: %w", w.index, w.pid, err)
	}
	return msg, nil
}

// killGraceful terminates the worker: it sends SIGTERM and waits up to grace
// before escalating to SIGKILL. With killTree the signals target the
// negative pid, i.e. the whole process group, so descendants spawned by the
// algorithm itself are reclaimed too (spec.md §6, "kill tree").
func (w *worker) killGraceful(killTree bool, grace time.Duration) error {
	target := w.pid
	if killTree {
		target = -w.pid
	}

	_ = syscall.Kill(target, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- w.cmd.Wait() }()

	select {
	case <-done:
		return w.closePipes()
	case <-time.After(grace):
		_ = syscall.Kill(target, syscall.SIGKILL)
		<-done
		return w.closePipes()
	}
}

// kill forces immediate termination, used on handshake failure and when
// Start tears down a partially spawned pool.
func (w *worker) kill(killTree bool) error {
	target := w.pid
	if killTree {
		target = -w.pid
	}
	_ = syscall.Kill(target, syscall.SIGKILL)
	_ = w.cmd.Wait()
	return w.closePipes()
}

func (w *worker) closePipes() error {
	_ = w.toWorker.Close()
	return w.fromWorker.Close()
}
