package simulator

import (
	"math"
	"math/rand"
	"sync"

	infmqtt "github.com/farreladriann/slc-backend/infra/mqtt"
)

// Outlet is one relay controlled socket with a constant nominal load.
type Outlet struct {
	Number  int
	DrawW   float64
	Voltage float64

	mu sync.Mutex
	on bool
}

// SetRelay opens or closes the relay.
func (o *Outlet) SetRelay(on bool) {
	o.mu.Lock()
	o.on = on
	o.mu.Unlock()
}

// On reports the relay state.
func (o *Outlet) On() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.on
}

// Reading samples the outlet. An open relay reports zero current and power.
// jitter is applied to the draw, rng may be nil when jitter is zero.
func (o *Outlet) Reading(jitter float64, rng *rand.Rand) infmqtt.ReadingPayload {
	r := infmqtt.ReadingPayload{TerminalID: o.Number, Voltage: o.Voltage}
	if !o.On() {
		return r
	}
	r.RelayStatus = 1
	p := o.DrawW
	if jitter > 0 && rng != nil {
		p *= 1 + jitter*(2*rng.Float64()-1)
	}
	r.Power = round2(p)
	r.Current = round2(p / o.Voltage)
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
