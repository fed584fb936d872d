// Package telemetry ingests the power readings and relay states reported by
// the outlet boards.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farreladriann/slc-backend/core/events"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/monitoring"
	"github.com/farreladriann/slc-backend/core/store"
	"github.com/farreladriann/slc-backend/infra/logger"
	infmqtt "github.com/farreladriann/slc-backend/infra/mqtt"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

// Subscriber is the part of the MQTT client the manager needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, h infmqtt.Handler) error
}

// Manager stores every upstream reading and mirrors the reported relay state
// onto the terminal.
type Manager struct {
	cfg       Config
	sub       Subscriber
	terminals store.TerminalStore
	telemetry store.TelemetryStore
	bus       eventbus.EventBus
	log       logger.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewManager creates an ingest manager. bus may be nil.
func NewManager(cfg Config, sub Subscriber, ts store.TerminalStore, tel store.TelemetryStore, bus eventbus.EventBus) (*Manager, error) {
	if sub == nil || ts == nil || tel == nil {
		return nil, fmt.Errorf("telemetry: nil dependency provided to NewManager")
	}
	if cfg.Topic == "" {
		cfg.Topic = infmqtt.DefaultUpstreamTopic
	}
	timeout := time.Duration(cfg.StoreTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		sub:       sub,
		terminals: ts,
		telemetry: tel,
		bus:       bus,
		log:       logger.New("telemetry"),
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// Start subscribes to the upstream topic. Messages are handled on the MQTT
// client's goroutines until it disconnects.
func (m *Manager) Start() error {
	if err := m.sub.Subscribe(m.cfg.Topic, m.cfg.qos(), m.handle); err != nil {
		return err
	}
	m.log.Infof("ingesting readings from %s", m.cfg.Topic)
	return nil
}

func (m *Manager) handle(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	n, err := m.Ingest(ctx, payload)
	if err != nil {
		m.log.Errorf("upstream message on %s: %v", topic, err)
		monitoring.CaptureException(err, map[string]string{"module": "telemetry", "topic": topic})
		return
	}
	m.log.Debugf("stored %d readings from %s", n, topic)
}

// Ingest decodes one upstream payload and stores its readings. Entries are
// processed independently; the returned error joins the failures and the
// count reports the readings stored.
func (m *Manager) Ingest(ctx context.Context, payload []byte) (int, error) {
	entries, err := infmqtt.DecodeReadings(payload)
	if err != nil {
		messagesIngested.WithLabelValues("invalid").Inc()
		return 0, err
	}
	var errs []error
	stored := 0
	for _, e := range entries {
		if err := m.store(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		stored++
	}
	readingsStored.Add(float64(stored))
	if stored > 0 {
		lastIngest.SetToCurrentTime()
	}
	if len(errs) > 0 {
		messagesIngested.WithLabelValues("error").Inc()
		return stored, errors.Join(errs...)
	}
	messagesIngested.WithLabelValues("ok").Inc()
	return stored, nil
}

func (m *Manager) store(ctx context.Context, e infmqtt.ReadingPayload) error {
	id := infmqtt.TerminalID(e.TerminalID)
	status := e.Status()
	now := m.now()
	r := model.PowerReading{
		TerminalID: id,
		PowerW:     e.Power,
		Ampere:     e.Current,
		Volt:       e.Voltage,
		Timestamp:  now,
	}
	if err := m.telemetry.InsertReading(ctx, r); err != nil {
		return fmt.Errorf("insert reading %s: %w", id, err)
	}
	err := m.terminals.UpdateStatus(ctx, id, status)
	if errors.Is(err, store.ErrNotFound) {
		m.log.Infof("registering unknown terminal %s", id)
		err = m.terminals.UpsertTerminal(ctx, model.Terminal{ID: id, Status: status})
	}
	if err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	if m.bus != nil {
		m.bus.Publish(events.TerminalStateEvent{TerminalID: id, Status: status, PowerW: e.Power, Time: now})
	}
	return nil
}
