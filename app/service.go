// Package app wires the controller components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/farreladriann/slc-backend/api"
	"github.com/farreladriann/slc-backend/config"
	"github.com/farreladriann/slc-backend/core/admission"
	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/audit"
	"github.com/farreladriann/slc-backend/core/dispatch"
	coremetrics "github.com/farreladriann/slc-backend/core/metrics"
	"github.com/farreladriann/slc-backend/core/monitoring"
	"github.com/farreladriann/slc-backend/core/scheduler"
	"github.com/farreladriann/slc-backend/core/statistics"
	corestore "github.com/farreladriann/slc-backend/core/store"
	"github.com/farreladriann/slc-backend/infra/logger"
	"github.com/farreladriann/slc-backend/infra/metrics"
	infmon "github.com/farreladriann/slc-backend/infra/monitoring"
	"github.com/farreladriann/slc-backend/infra/mqtt"
	"github.com/farreladriann/slc-backend/infra/store"
	"github.com/farreladriann/slc-backend/infra/telemetry"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

// Service owns every long lived component of the controller.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	bus       eventbus.EventBus
	store     corestore.Store
	audit     audit.Store
	sink      coremetrics.MetricsSink
	client    *mqtt.PahoClient
	scheduler *scheduler.Scheduler
	watcher   *scheduler.Watcher
	telemetry *telemetry.Manager
	server    *http.Server
}

// New creates a Service from the configuration. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	logg := logger.New("service")

	mon, err := infmon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logg.Warnf("sentry disabled: %v", err)
	} else {
		monitoring.Init(mon)
	}

	bus := eventbus.New()
	if err := metrics.RegisterBusMetrics(nil, bus); err != nil {
		logg.Warnf("event bus metrics: %v", err)
	}
	svc = &Service{cfg: cfg, log: logg, bus: bus}
	defer func() {
		if err != nil {
			_ = svc.Close()
		}
	}()

	if svc.store, err = store.Open(ctx, cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if svc.audit, err = audit.NewStore(cfg.Audit); err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	if svc.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if svc.client, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	disp, err := dispatch.NewDispatcher(svc.client, cfg.Dispatch, logger.New("dispatch"), svc.bus)
	if err != nil {
		return nil, err
	}
	engine := allocation.NewEngine(cfg.Allocation)
	svc.scheduler, err = scheduler.New(scheduler.Deps{
		Terminals: svc.store,
		Telemetry: svc.store,
		Engine:    engine,
		Sender:    disp,
		Audit:     svc.audit,
		Bus:       svc.bus,
		Logger:    logger.New("scheduler"),
	}, cfg.Scheduler.Interval())
	if err != nil {
		return nil, err
	}
	adm, err := admission.New(admission.Deps{
		Terminals: svc.store,
		Telemetry: svc.store,
		Sender:    disp,
		Scheduler: svc.scheduler,
		Bus:       svc.bus,
		Logger:    logger.New("admission"),
	}, engine.Config().DefaultCapacityW)
	if err != nil {
		return nil, err
	}

	if cfg.Telemetry.IsEnabled() {
		if svc.telemetry, err = telemetry.NewManager(cfg.Telemetry, svc.client, svc.store, svc.store, svc.bus); err != nil {
			return nil, err
		}
	}
	if cfg.Watcher.IsEnabled() {
		svc.watcher = scheduler.NewWatcher(svc.store, disp, cfg.Watcher, logger.New("watcher"))
	}

	handler := api.NewRouter(api.Deps{
		Terminals:  svc.store,
		Telemetry:  svc.store,
		Allocator:  svc.scheduler,
		Admission:  adm,
		Statistics: statistics.NewService(svc.store, cfg.Statistics),
		Audit:      svc.audit,
		Logger:     logger.New("api"),
	}, cfg.HTTP.Token)
	svc.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout(),
	}
	return svc, nil
}

// Run starts every component and blocks until ctx is canceled or the HTTP
// listener fails.
func (s *Service) Run(ctx context.Context) error {
	go metrics.StartEventCollector(ctx, s.bus, s.sink)

	if addr := s.cfg.Metrics.PrometheusAddr(); addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.telemetry != nil {
		if err := s.telemetry.Start(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	if s.watcher != nil {
		go s.watcher.Run(ctx)
	}
	if s.cfg.Scheduler.AutoStart {
		s.scheduler.Start(s.cfg.Scheduler.AutoInterval())
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("http listening on %s", s.cfg.HTTP.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errc:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	s.shutdown()
	return runErr
}

func (s *Service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout())
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	s.scheduler.Stop()
	done := make(chan struct{})
	go func() {
		s.scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warnf("allocation cycle still running at shutdown")
	}
	monitoring.Flush(2 * time.Second)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.bus != nil {
		s.bus.Close()
	}
	return errors.Join(errs...)
}
