package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"sentinel/internal/agent"
	"sentinel/internal/clock"
	"sentinel/internal/config"
	"sentinel/internal/dispatch"
	"sentinel/internal/engine"
	"sentinel/internal/ingest"
	"sentinel/internal/logging"
	"sentinel/internal/notify"
	"sentinel/internal/rules"
	"sentinel/internal/store"
	"sentinel/internal/templatefmt"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable response engine service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	records   store.Store
	handler   *Handler
	httpSrv   *http.Server
	natsSub   interface{ Close() error }
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds a service instance from one config snapshot.
// Params: validated config and clock implementation.
// Returns: initialized service or setup error.
func NewService(cfg config.Config, clk clock.Clock) (*Service, error) {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	records, err := buildStore(cfg)
	if err != nil {
		closeLog()
		return nil, err
	}

	messages, err := templatefmt.NewMessageSet(
		cfg.Notify.Messages.Rule,
		cfg.Notify.Messages.Escalation,
		cfg.Notify.Messages.Anomaly,
	)
	if err != nil {
		_ = records.Close()
		closeLog()
		return nil, err
	}

	notifier := buildNotifier(cfg)
	catalog := rules.NewCatalog(rules.NewDirSource(cfg.Service.RulesDir), logger)
	evaluator := engine.NewEvaluator(records, clk, logger)
	dispatcher := dispatch.NewDispatcher(agent.NewClient(cfg.Agent), notifier, records, messages, clk, logger)
	handler := NewHandler(catalog, evaluator, dispatcher, records, notifier, messages, cfg.Anomaly.ScoreThreshold, clk, logger)

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		records:  records,
		handler:  handler,
		clock:    clk,
	}

	if err := catalog.Reload(context.Background()); err != nil {
		// Start with an empty catalog; the reload ticker keeps retrying.
		logger.Error("initial rule load failed", "error", err.Error())
	}

	service.buildHTTPServer()
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	return service, nil
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.cfg.Service.ReloadEnabled {
		reloadInterval := time.Duration(s.cfg.Service.ReloadIntervalSec) * time.Second
		reloadTicker := time.NewTicker(reloadInterval)
		defer reloadTicker.Stop()
		go func() {
			for {
				select {
				case <-shutdownCtx.Done():
					return
				case <-reloadTicker.C:
					if err := s.handler.ReloadRules(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
						s.logger.Error("rule reload failed", "error", err.Error())
					}
				}
			}
		}()
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	if err := s.records.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.records != nil {
		_ = s.records.Close()
		s.records = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires the mux with API and probe endpoints.
// Params: none.
// Returns: http server stored on the service.
func (s *Service) buildHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Ingest.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.Ingest.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})

	if s.cfg.Ingest.HTTP.Enabled {
		api := ingest.NewAPI(s.handler, s.cfg.Service.APIToken, s.cfg.Ingest.HTTP.MaxBodyBytes)
		api.Register(mux)
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Ingest.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildNATSSubscriber starts NATS ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if !config.IsNATSMode(s.cfg) {
		return nil
	}
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.handler, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// buildStore creates the record backend from config.
// Params: root config snapshot.
// Returns: selected store backend.
func buildStore(cfg config.Config) (store.Store, error) {
	if config.IsNATSMode(cfg) {
		return store.NewNATSJournal(cfg.Journal)
	}
	return store.NewMemoryStore(cfg.Journal.WindowCapacity), nil
}

// buildNotifier creates the paging channel from config.
// Params: root config snapshot.
// Returns: telegram notifier or drop-all fallback.
func buildNotifier(cfg config.Config) notify.Notifier {
	if cfg.Notify.Telegram.Enabled {
		return notify.NewTelegramNotifier(cfg.Notify.Telegram)
	}
	return notify.NopNotifier{}
}
