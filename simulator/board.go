package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/farreladriann/slc-backend/infra/logger"
	infmqtt "github.com/farreladriann/slc-backend/infra/mqtt"
)

// Board simulates one controller with Config.Outlets outlets numbered from 1.
type Board struct {
	cfg     Config
	outlets map[int]*Outlet
	order   []int
	log     logger.Logger

	mu  sync.Mutex
	rng *rand.Rand

	client paho.Client
}

// NewBoard creates a board with every outlet initialised from cfg.
func NewBoard(cfg Config) (*Board, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		cfg:     cfg,
		outlets: make(map[int]*Outlet, cfg.Outlets),
		log:     logger.New("simulator"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for n := 1; n <= cfg.Outlets; n++ {
		draw := cfg.DrawW
		if w, ok := cfg.Draws[infmqtt.TerminalID(n)]; ok {
			draw = w
		}
		b.outlets[n] = &Outlet{Number: n, DrawW: draw, Voltage: cfg.Voltage, on: cfg.InitialOn}
		b.order = append(b.order, n)
	}
	return b, nil
}

// Outlet returns outlet n or nil.
func (b *Board) Outlet(n int) *Outlet {
	return b.outlets[n]
}

// HandleCommand applies a downstream payload. Commands for outlets the board
// does not have are ignored.
func (b *Board) HandleCommand(payload []byte) error {
	var cmd infmqtt.CommandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	o, ok := b.outlets[cmd.TerminalID]
	if !ok {
		b.log.Debugf("ignoring command for unknown outlet %d", cmd.TerminalID)
		return nil
	}
	o.SetRelay(cmd.Relay == 1)
	b.log.Infof("outlet %d relay=%d (id %d)", cmd.TerminalID, cmd.Relay, cmd.ID)
	return nil
}

// Snapshot samples every outlet in number order.
func (b *Board) Snapshot() []infmqtt.ReadingPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]infmqtt.ReadingPayload, 0, len(b.order))
	for _, n := range b.order {
		out = append(out, b.outlets[n].Reading(b.cfg.Jitter, b.rng))
	}
	return out
}

// Run connects to the broker, applies commands and publishes a snapshot every
// interval until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	cli, err := newMQTTClient(b.cfg.Broker, b.cfg.ClientID)
	if err != nil {
		return err
	}
	b.client = cli
	defer cli.Disconnect(250)

	token := cli.Subscribe(b.cfg.DownstreamTopic, 1, func(_ paho.Client, msg paho.Message) {
		if err := b.HandleCommand(msg.Payload()); err != nil {
			b.log.Warnf("%v", err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	b.log.Infof("simulating %d outlets on %s", len(b.order), b.cfg.Broker)

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()
	for {
		b.publish()
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Board) publish() {
	payload, err := json.Marshal(b.Snapshot())
	if err != nil {
		b.log.Errorf("marshal readings: %v", err)
		return
	}
	token := b.client.Publish(b.cfg.UpstreamTopic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		b.log.Warnf("readings publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		b.log.Errorf("publish readings: %v", err)
	}
}
