package event

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
)

type Callable interface {
	Invoke(ctx context.Context) error
}

// CallableFunc adapts a plain function to Callable.
type CallableFunc func(ctx context.Context) error

func (f CallableFunc) Invoke(ctx context.Context) error {
	return f(ctx)
}

// Cleaner runs shutdown hooks in registration order once, either on SIGINT/SIGTERM or
// when Clean is called.
type Cleaner struct {
	cleaners       []Callable
	mu             sync.Mutex
	initOnce       sync.Once
	cleanOnce      sync.Once
	cleaning       bool
	timeout        time.Duration
	loggerShutdown Callable
	cleanErr       error
}

func NewCleaner() *Cleaner {
	return &Cleaner{timeout: 10 * time.Second}
}

func (c *Cleaner) Add(callable Callable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleaning {
		logger.Debug("Cleaner is already shutting down, ignoring new cleaner")
		return
	}
	c.cleaners = append(c.cleaners, callable)
}

// Init starts the signal listener. loggerShutdown runs after every other hook.
func (c *Cleaner) Init(loggerShutdown Callable) {
	c.initOnce.Do(func() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		c.loggerShutdown = loggerShutdown

		go func() {
			<-ctx.Done()
			stop()
			logger.Info("Received interrupt signal, shutting down")
			_ = c.Clean()
			os.Exit(0)
		}()
	})
}

// Clean invokes every registered hook with its own timeout and returns the joined errors.
// Subsequent calls return the first result without running the hooks again.
func (c *Cleaner) Clean() error {
	c.cleanOnce.Do(func() {
		c.mu.Lock()
		c.cleaning = true
		cleanersCopy := make([]Callable, len(c.cleaners))
		copy(cleanersCopy, c.cleaners)
		c.mu.Unlock()

		logger.DebugF("Starting cleanup of %d registered functions", len(cleanersCopy))

		var errs []error
		for i, callable := range cleanersCopy {
			func(idx int, callable Callable) {
				logger.DebugF("Invoking cleaner #%d (%T)", idx+1, callable)
				timeoutCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
				defer cancel()
				if err := callable.Invoke(timeoutCtx); err != nil {
					logger.ErrorF("Cleaner #%d (%T) failed: %v", idx+1, callable, err)
					errs = append(errs, err)
				}
			}(i, callable)
		}

		if len(errs) > 0 {
			logger.ErrorF("%d errors occurred during cleanup", len(errs))
		} else {
			logger.Debug("All cleaners executed successfully")
		}
		logger.Info("Cleanup finished, server offline")
		c.cleanErr = errors.Join(errs...)

		if c.loggerShutdown != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := c.loggerShutdown.Invoke(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "LOGGER SHUTDOWN ERROR: %v\n", err)
			}
		}
	})
	return c.cleanErr
}
