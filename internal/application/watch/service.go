// Package watch recounts an input whenever the files behind it change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appCounting "github.com/jbctechsolutions/counttokens/internal/application/counting"
	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
	infraWatch "github.com/jbctechsolutions/counttokens/internal/infrastructure/watch"
)

// CountFunc performs one count of the watched input.
type CountFunc func(ctx context.Context) (domainCounting.Result, error)

// Update is delivered after every count, including the initial one.
type Update struct {
	// Trigger is the changed path, or empty for the initial count.
	Trigger string
	Result  domainCounting.Result
	Err     error
}

// ServiceConfig holds configuration for the Service.
type ServiceConfig struct {
	Input    appCounting.Input
	Options  domainCounting.Options
	Debounce time.Duration
	Count    CountFunc
	OnUpdate func(Update)
	Logger   *logging.Logger
}

// ErrTextInput is returned when asked to watch literal text.
var ErrTextInput = errors.New("text input cannot be watched")

// Service coordinates file watching with recounting.
type Service struct {
	config  ServiceConfig
	watcher *infraWatch.Watcher
	logger  *logging.Logger

	running bool
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a watch service for a file or directory input.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch cfg.Input.Mode() {
	case "file", "directory":
	case "text":
		return nil, ErrTextInput
	default:
		return nil, fmt.Errorf("nothing to watch")
	}
	if cfg.Count == nil {
		return nil, fmt.Errorf("count function is required")
	}
	if cfg.OnUpdate == nil {
		return nil, fmt.Errorf("update callback is required")
	}

	opts := cfg.Options.WithDefaults()
	watcherCfg := infraWatch.DefaultConfig()
	if cfg.Debounce > 0 {
		watcherCfg.Debounce = cfg.Debounce
	}
	watcherCfg.Recursive = opts.Recursive
	watcherCfg.Match = func(path string) bool {
		return appCounting.MatchesAny(opts.Patterns, path)
	}

	watcher, err := infraWatch.New(watcherCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Service{
		config:  cfg,
		watcher: watcher,
		logger:  logger.With("component", "watch"),
	}, nil
}

// Start counts the input once and then recounts on every settled change.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	target := s.config.Input.Target()
	if err := s.watcher.Add(target); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.recount("")

	s.watcher.Start()
	s.wg.Add(1)
	go s.processEvents()

	s.running = true
	s.logger.Info("watch started", "target", target)
	return nil
}

// Stop stops watching.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	err := s.watcher.Close()
	if err != nil {
		s.logger.Warn("error closing watcher", "error", err)
	}
	s.wg.Wait()

	s.running = false
	s.logger.Info("watch stopped")
	return err
}

// IsRunning returns true if the service is currently running.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) processEvents() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			s.logger.Debug("change detected", "path", event.Path, "type", string(event.Type))
			s.recount(event.Path)

		case err, ok := <-s.watcher.Errors():
			if !ok {
				return
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Service) recount(trigger string) {
	result, err := s.config.Count(s.ctx)
	if err != nil && s.ctx.Err() != nil {
		return
	}
	s.config.OnUpdate(Update{Trigger: trigger, Result: result, Err: err})
}
