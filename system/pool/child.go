package pool

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/domain/envelope"
	"github.com/r3e-network/algoserver/domain/execctx"
	"github.com/r3e-network/algoserver/domain/execution"
)

// ParseWorkerFDArg parses the "--worker-fd=R:W" flag value spawnWorker
// passes to the re-exec'd child, returning the inherited read/write file
// descriptors.
func ParseWorkerFDArg(arg string) (readFD, writeFD int, err error) {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("worker-fd: expected R:W, got %q", arg)
	}
	readFD, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("worker-fd: bad read fd: %w", err)
	}
	writeFD, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("worker-fd: bad write fd: %w", err)
	}
	return readFD, writeFD, nil
}

// cachedInstance is a stateful entrypoint's worker-local state, initialized
// once per entrypointRef for the lifetime of the worker process.
type cachedInstance struct {
	instance algorithm.WorkerInstance
}

// RunWorkerBody is the entire body of a worker process (SPEC_FULL.md §4.5,
// "worker loop"): complete the readiness handshake, then decode task
// messages one at a time from in, dispatch through reg, and write result
// messages to out until the parent sends the stop sentinel or the pipe
// closes. It never returns except on shutdown or an unrecoverable pipe
// error, by design — the parent, not the child, owns the retry/respawn
// decision.
func RunWorkerBody(reg *algorithm.Registry, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	dec := json.NewDecoder(bufio.NewReader(in))

	if err := enc.Encode(readyMessage{Ready: true}); err != nil {
		return fmt.Errorf("worker: send readiness: %w", err)
	}

	instances := make(map[string]*cachedInstance)
	defer func() {
		for _, cached := range instances {
			_ = cached.instance.Shutdown()
		}
	}()

	for {
		var task taskMessage
		if err := dec.Decode(&task); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("worker: decode task: %w", err)
		}
		if task.isStop() {
			return nil
		}

		result := runTask(reg, instances, task)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("worker: send result: %w", err)
		}
	}
}

func runTask(reg *algorithm.Registry, instances map[string]*cachedInstance, task taskMessage) resultMessage {
	startedAt := time.Now()
	pid := os.Getpid()

	name, version, ok := splitEntrypointRef(task.EntrypointRef)
	if !ok {
		return failureResult(task.TaskID, pid, startedAt, string(execution.ErrorValidation), fmt.Sprintf("malformed entrypointRef %q", task.EntrypointRef))
	}

	spec, err := reg.Get(name, version)
	if err != nil {
		return failureResult(task.TaskID, pid, startedAt, string(execution.ErrorValidation), err.Error())
	}

	var algContext *envelope.Context
	if len(task.Context) > 0 {
		algContext = &envelope.Context{}
		if err := json.Unmarshal(task.Context, algContext); err != nil {
			return failureResult(task.TaskID, pid, startedAt, string(execution.ErrorValidation), fmt.Sprintf("decode context: %v", err))
		}
	}
	handle := execctx.New(task.RequestID, task.TraceID, algContext, task.RequestDatetime)

	var rawOut json.RawMessage
	if task.Stateful && spec.NewWorkerInstance != nil {
		rawOut, err = runStateful(instances, task, spec, handle)
	} else {
		rawOut, err = spec.Run(handle, task.InputDump, task.HyperparamsDump)
	}

	endedAt := time.Now()

	if err != nil {
		return failureResult(task.TaskID, pid, startedAt, string(execution.ErrorRuntime), err.Error())
	}

	msg := resultMessage{
		TaskID:    task.TaskID,
		Success:   true,
		DataDump:  rawOut,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		PID:       pid,
	}
	if meta := handle.ResponseMeta(); meta != nil {
		msg.ResponseMeta = &metaMessage{Code: meta.Code, Message: meta.Message, Context: meta.Context}
	}
	return msg
}

func runStateful(instances map[string]*cachedInstance, task taskMessage, spec *algorithm.Spec, handle *execctx.Handle) (json.RawMessage, error) {
	cached, ok := instances[task.EntrypointRef]
	if !ok {
		inst := spec.NewWorkerInstance()
		if err := inst.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
		cached = &cachedInstance{instance: inst}
		instances[task.EntrypointRef] = cached
	}
	return cached.instance.Invoke(handle, task.InputDump, task.HyperparamsDump)
}

func failureResult(taskID string, pid int, startedAt time.Time, kind, detail string) resultMessage {
	return resultMessage{
		TaskID:      taskID,
		Success:     false,
		ErrorKind:   kind,
		ErrorDetail: detail,
		StartedAt:   startedAt,
		EndedAt:     time.Now(),
		PID:         pid,
	}
}

func splitEntrypointRef(ref string) (name, version string, ok bool) {
	idx := strings.LastIndex(ref, "@")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}

// OpenWorkerPipes wraps the inherited file descriptors as *os.File.
func OpenWorkerPipes(readFD, writeFD int) (in *os.File, out *os.File) {
	return os.NewFile(uintptr(readFD), "worker-in"), os.NewFile(uintptr(writeFD), "worker-out")
}
