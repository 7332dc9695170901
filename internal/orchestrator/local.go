package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Local runs executions as goroutines in this process. Parked executions
// wait on a channel; nothing survives a restart, and a document left
// AWAITING_OCR by a restart fails on its next resume.
type Local struct {
	mu     sync.Mutex
	steps  Steps
	parked map[string]chan signal
	runs   map[ExecutionRef]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	logger *slog.Logger
}

type signal struct {
	outcome Outcome
	failed  bool
	kind    string
	cause   string
}

// NewLocal returns a Local orchestrator. Bind must be called before Start.
func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		parked: make(map[string]chan signal),
		runs:   make(map[ExecutionRef]context.CancelFunc),
		logger: logger.With("component", "orchestrator", "backend", "local"),
	}
}

var _ Orchestrator = (*Local)(nil)

// Bind sets the steps executions run.
func (l *Local) Bind(steps Steps) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = steps
}

// Start launches an execution detached from ctx's cancellation.
func (l *Local) Start(ctx context.Context, in WorkflowInput) (ExecutionRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", errors.New("orchestrator is shut down")
	}
	if l.steps == nil {
		return "", errors.New("orchestrator has no steps bound")
	}

	ref := ExecutionRef("local/" + in.DocumentID + "/" + uuid.NewString())
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.runs[ref] = cancel
	l.wg.Add(1)
	go l.run(runCtx, ref, in, l.steps)
	return ref, nil
}

func (l *Local) run(ctx context.Context, ref ExecutionRef, in WorkflowInput, steps Steps) {
	defer l.wg.Done()
	defer l.forget(ref)

	token := "local:" + uuid.NewString()
	ch := make(chan signal, 1)
	l.mu.Lock()
	l.parked[token] = ch
	l.mu.Unlock()
	defer l.unpark(token)

	log := l.logger.With("document_id", in.DocumentID, "execution_ref", string(ref))

	if err := steps.BeginOcr(ctx, in, token); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("workflow_begin_ocr_failed", "error", err)
		l.markFailed(ctx, steps, in, err.Error())
		return
	}

	select {
	case <-ctx.Done():
		log.Info("workflow_cancelled")
		return
	case sig := <-ch:
		if sig.failed {
			l.markFailed(ctx, steps, in, sig.cause)
			return
		}
		if err := steps.CompleteExtraction(ctx, in, sig.outcome); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("workflow_extraction_failed", "error", err)
			l.markFailed(ctx, steps, in, err.Error())
		}
	}
}

func (l *Local) markFailed(ctx context.Context, steps Steps, in WorkflowInput, cause string) {
	if err := steps.MarkFailed(ctx, in, cause); err != nil {
		l.logger.Error("workflow_mark_failed_error", "document_id", in.DocumentID, "error", err)
	}
}

func (l *Local) forget(ref ExecutionRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cancel, ok := l.runs[ref]; ok {
		cancel()
		delete(l.runs, ref)
	}
}

func (l *Local) unpark(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.parked, token)
}

func (l *Local) deliver(token string, sig signal) error {
	l.mu.Lock()
	ch, ok := l.parked[token]
	if ok {
		delete(l.parked, token)
	}
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	ch <- sig
	return nil
}

func (l *Local) Resume(_ context.Context, token string, out Outcome) error {
	return l.deliver(token, signal{outcome: out})
}

func (l *Local) Fail(_ context.Context, token, kind, cause string) error {
	return l.deliver(token, signal{failed: true, kind: kind, cause: cause})
}

func (l *Local) Cancel(_ context.Context, ref ExecutionRef) error {
	l.mu.Lock()
	cancel, ok := l.runs[ref]
	l.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Running reports the number of live executions.
func (l *Local) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.runs)
}

// Shutdown cancels every execution and waits for them to exit or ctx to
// expire.
func (l *Local) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	for _, cancel := range l.runs {
		cancel()
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
