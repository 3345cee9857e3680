package shell

import (
	"fmt"
	"log/slog"
	"sync"
)

// CleanupError wraps a failure (or panic) raised by an exit hook.
type CleanupError struct {
	Index int
	Err   error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("exit hook #%d failed: %v", e.Index, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// ExitHooks is an append-only list of cleanup callbacks drained exactly once.
type ExitHooks struct {
	mu     sync.Mutex
	hooks  []func() error
	once   sync.Once
	logger *slog.Logger
}

// NewExitHooks returns an empty registry. A nil logger uses slog.Default.
func NewExitHooks(logger *slog.Logger) *ExitHooks {
	return &ExitHooks{logger: logger}
}

// OnExit appends a hook.
func (h *ExitHooks) OnExit(fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Run invokes every hook in registration order. Failures are logged and never
// stop the remaining hooks. Only the first call does anything; it reports
// whether it was that call.
func (h *ExitHooks) Run() bool {
	ran := false
	h.once.Do(func() {
		ran = true

		h.mu.Lock()
		hooks := append([]func() error(nil), h.hooks...)
		h.mu.Unlock()

		logger := h.logger
		if logger == nil {
			logger = slog.Default()
		}

		for i, fn := range hooks {
			if err := invoke(fn); err != nil {
				logger.Error("Exit hook failed", "error", &CleanupError{Index: i, Err: err})
			}
		}
	})
	return ran
}

func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Process-wide registry. Initialized empty, drained once at shutdown.
var processHooks = NewExitHooks(nil)

// OnExit registers a process-wide exit hook.
func OnExit(fn func() error) {
	processHooks.OnExit(fn)
}

// RunExitHooks drains the process-wide hooks.
func RunExitHooks() bool {
	return processHooks.Run()
}

// ProcessExitHooks exposes the process-wide registry for wiring into a Shell.
func ProcessExitHooks() *ExitHooks {
	return processHooks
}
