// Package shutdown turns interrupt signals into crawl cancellation.
//
// The first signal cancels the handler's context so the crawl loop can stop
// at its next check and still report what it collected. A second signal
// invokes the force callback.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Callback is a cleanup function run during shutdown.
type Callback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds each cleanup callback.
	Timeout time.Duration
	Signals []os.Signal
	// OnSignal is called when the first signal arrives.
	OnSignal func(sig os.Signal)
	// OnForce is called when a signal arrives after cancellation.
	OnForce func(sig os.Signal)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Handler manages crawl cancellation and cleanup.
type Handler struct {
	mu        sync.Mutex
	callbacks []Callback
	names     []string

	cancelled atomic.Bool
	finished  atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
	timeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	sigChan  chan os.Signal
	onSignal func(os.Signal)
	onForce  func(os.Signal)
}

// New creates a handler whose context derives from parent and starts
// listening for cfg.Signals.
func New(parent context.Context, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		stop:     make(chan struct{}),
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		sigChan:  make(chan os.Signal, 2),
		onSignal: cfg.OnSignal,
		onForce:  cfg.OnForce,
	}

	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()

	return h
}

func (h *Handler) listen() {
	for {
		select {
		case sig := <-h.sigChan:
			if h.cancelled.CompareAndSwap(false, true) {
				if h.onSignal != nil {
					h.onSignal(sig)
				}
				h.cancel()
				continue
			}
			if h.onForce != nil {
				h.onForce(sig)
			}
		case <-h.stop:
			return
		}
	}
}

// Register adds a named cleanup callback. Callbacks run in reverse
// registration order.
func (h *Handler) Register(name string, cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.callbacks = append(h.callbacks, cb)
	h.names = append(h.names, name)
}

// RegisterFunc registers a cleanup function that cannot fail.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// Context returns the crawl context. It is cancelled by the first signal
// or by Shutdown.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Cancelled reports whether a signal stopped the crawl.
func (h *Handler) Cancelled() bool {
	return h.cancelled.Load()
}

// deliver hands sig to the listener as if the process had received it.
func (h *Handler) deliver(sig os.Signal) {
	select {
	case h.sigChan <- sig:
	default:
	}
}

// Shutdown stops listening for signals, cancels the context and runs the
// cleanup callbacks. Only the first call does any work.
func (h *Handler) Shutdown() []error {
	if !h.finished.CompareAndSwap(false, true) {
		return nil
	}

	signal.Stop(h.sigChan)
	h.stopOnce.Do(func() { close(h.stop) })
	h.cancel()

	h.mu.Lock()
	callbacks := make([]Callback, len(h.callbacks))
	names := make([]string, len(h.names))
	copy(callbacks, h.callbacks)
	copy(names, h.names)
	h.mu.Unlock()

	var errs []error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := h.run(names[i], callbacks[i]); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func (h *Handler) run(name string, cb Callback) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- cb(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// TimeoutError is returned when a callback outlives the handler timeout.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
