package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gravityvi/Todo-app-cansiter/internal/logging"
)

var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed during shutdown.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Handler is one named shutdown step.
type Handler func(ctx context.Context) error

type registration struct {
	name     string
	handler  Handler
	critical bool
}

// Coordinator runs registered shutdown handlers once, in registration order.
// Every handler runs even if an earlier one fails. Once the shutdown context
// expires, plain handlers are skipped but critical ones still run, each with
// a fresh deadline of the coordinator timeout.
type Coordinator struct {
	timeout time.Duration
	log     *logging.Logger

	mu           sync.Mutex
	handlers     []registration
	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
	signalChan   chan os.Signal
}

// NewCoordinator creates a coordinator whose signal-triggered shutdown is
// bounded by timeout.
func NewCoordinator(timeout time.Duration, log *logging.Logger) *Coordinator {
	return &Coordinator{
		timeout:    timeout,
		log:        log.WithComponent("shutdown"),
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
}

// Register adds a handler to run during shutdown.
func (c *Coordinator) Register(name string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers = append(c.handlers, registration{name: name, handler: handler})
}

// RegisterCritical adds a handler that runs even after an earlier handler
// used up the shutdown deadline.
func (c *Coordinator) RegisterCritical(name string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers = append(c.handlers, registration{name: name, handler: handler, critical: true})
}

// Shutdown runs every handler. Only the first call does work; later calls
// wait for it and return ErrAlreadyShutdown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	first := false
	c.shutdownOnce.Do(func() {
		first = true
		c.shutdownErr = c.run(ctx)
		close(c.done)
	})
	if first {
		return c.shutdownErr
	}
	<-c.done
	return ErrAlreadyShutdown
}

// ShutdownWithTimeout calls Shutdown bounded by the configured timeout.
func (c *Coordinator) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals starts shutdown on SIGINT, SIGTERM or SIGHUP.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	go func() {
		select {
		case sig := <-c.signalChan:
			c.log.Info("signal received", map[string]interface{}{"signal": sig.String()})
			_ = c.ShutdownWithTimeout()
		case <-c.done:
		}
		signal.Stop(c.signalChan)
	}()
}

// Done returns a channel that is closed when shutdown is complete.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error. Only valid after Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.shutdownErr
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	var failed, timedOut bool
	for _, reg := range handlers {
		if ctx.Err() != nil {
			timedOut = true
			if !reg.critical {
				c.log.Error("shutdown timed out, skipping handler", map[string]interface{}{"handler": reg.name})
				continue
			}
		}

		if err := c.call(ctx, reg); err != nil {
			failed = true
		}
	}

	var errs []error
	if timedOut {
		errs = append(errs, ErrTimeout)
	}
	if failed {
		errs = append(errs, ErrHandlerFailed)
	}
	return errors.Join(errs...)
}

// call runs one handler. A critical handler reached after ctx expired gets
// its own deadline instead.
func (c *Coordinator) call(ctx context.Context, reg registration) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := reg.handler(ctx)
	fields := map[string]interface{}{
		"handler":  reg.name,
		"duration": time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		fields["error"] = err
		c.log.Error("shutdown handler failed", fields)
		return err
	}
	c.log.Debug("shutdown handler done", fields)
	return nil
}

// OnHangup calls fn when the process receives SIGHUP, which is what a
// closing terminal sends. The returned func stops listening.
func OnHangup(fn func()) (stop func()) {
	hup := make(chan os.Signal, 1)
	quit := make(chan struct{})
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		select {
		case <-hup:
			fn()
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(hup)
			close(quit)
		})
	}
}
