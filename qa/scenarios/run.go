package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/dispatch"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/mqtt"
	"github.com/farreladriann/slc-backend/core/scheduler"
	"github.com/farreladriann/slc-backend/core/store"
	"github.com/farreladriann/slc-backend/infra/logger"
	"github.com/farreladriann/slc-backend/infra/metrics"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

func RunScenario(t *testing.T, sc *Scenario) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	bus := eventbus.New()
	defer bus.Close()
	go metrics.StartEventCollector(ctx, bus, sink)
	for deadline := time.Now().Add(time.Second); bus.Subscribers() == 0 && time.Now().Before(deadline); {
		time.Sleep(time.Millisecond)
	}

	st := store.NewMemoryStore()
	for _, d := range sc.Terminals {
		if err := st.UpsertTerminal(ctx, d.ToModel()); err != nil {
			t.Fatalf("seed %s: %v", d.ID, err)
		}
		if err := st.InsertReading(ctx, model.PowerReading{TerminalID: d.ID, PowerW: d.Power, Timestamp: time.Unix(0, 0)}); err != nil {
			t.Fatalf("reading %s: %v", d.ID, err)
		}
	}
	if sc.Capacity > 0 {
		if err := st.SetCapacityThreshold(ctx, "stm32_1", sc.Capacity); err != nil {
			t.Fatalf("threshold: %v", err)
		}
	}

	fail := make(map[string]bool, len(sc.FailTerminals))
	for _, id := range sc.FailTerminals {
		fail[id] = true
	}
	pub := mqtt.PublisherFunc(func(_ context.Context, cmd model.Command) error {
		if fail[cmd.TerminalID] {
			return mqtt.ErrNotConnected
		}
		return nil
	})
	disp, err := dispatch.NewDispatcher(pub, dispatch.Config{CommandDelayMs: -1}, logger.NopLogger{}, bus)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	sched, err := scheduler.New(scheduler.Deps{
		Terminals: st,
		Telemetry: st,
		Engine:    allocation.NewEngine(allocation.Config{}),
		Sender:    disp,
		Bus:       bus,
		Logger:    logger.NopLogger{},
	}, time.Minute)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}

	acked := 0
	var last scheduler.Report
	for i := 0; i < sc.Cycles; i++ {
		last, err = sched.RunOnce(ctx, scheduler.Options{Mode: sc.Mode})
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		acked += len(last.Commands) - len(model.Failed(last.Commands))
	}

	if !sameIDs(last.Result.SelectedIDs, sc.Expected.Selected) {
		t.Errorf("scenario %s expected selection %v, got %v", sc.Name, sc.Expected.Selected, last.Result.SelectedIDs)
	}
	if acked != sc.Expected.Acked {
		t.Errorf("scenario %s expected %d acked, got %d", sc.Name, sc.Expected.Acked, acked)
	}
	if last.Result.TotalPower > last.Capacity {
		t.Errorf("scenario %s exceeds capacity: %.1f > %.1f", sc.Name, last.Result.TotalPower, last.Capacity)
	}
	deadline := time.Now().Add(time.Second)
	for testutil.CollectAndCount(reg, "allocation_cycles_total") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if testutil.CollectAndCount(reg, "allocation_cycles_total") == 0 {
		t.Errorf("scenario %s recorded no cycle metrics", sc.Name)
	}
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
