package allocation

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/farreladriann/slc-backend/core/model"
)

// maxCapacityUnits caps the knapsack width so that absurd budgets do not
// overflow int arithmetic. Such budgets always route to the greedy solver.
const maxCapacityUnits = math.MaxInt32

// Item is one allocation candidate.
type Item struct {
	TerminalID string  `json:"terminalId" yaml:"terminalId"`
	Power      float64 `json:"power" yaml:"power"`
	Priority   int     `json:"priority" yaml:"priority"`
}

// Result is the outcome of one allocation run.
type Result struct {
	SelectedIDs   []string      `json:"selectedIds"`
	TotalPower    float64       `json:"totalPower"`
	TotalValue    int           `json:"totalPriority"`
	Algorithm     Mode          `json:"algorithm"`
	Duration      time.Duration `json:"durationNs"`
	CapacityUnits int           `json:"capacityUnits"`
	UsedUnits     int           `json:"usedUnits"`
}

// Commands turns a result into one command per item, in item order: selected
// terminals are switched on, all others off.
func (r Result) Commands(items []Item) []model.Command {
	selected := make(map[string]struct{}, len(r.SelectedIDs))
	for _, id := range r.SelectedIDs {
		selected[id] = struct{}{}
	}
	cmds := make([]model.Command, 0, len(items))
	for _, it := range items {
		state := model.StatusOff
		if _, ok := selected[it.TerminalID]; ok {
			state = model.StatusOn
		}
		cmds = append(cmds, model.Command{TerminalID: it.TerminalID, State: state})
	}
	return cmds
}

// ItemsFromTerminals joins terminals with their latest power. A terminal
// without a reading draws 0 W.
func ItemsFromTerminals(terms []model.Terminal, power map[string]float64) []Item {
	items := make([]Item, 0, len(terms))
	for _, t := range terms {
		items = append(items, Item{TerminalID: t.ID, Power: power[t.ID], Priority: t.Priority})
	}
	return items
}

// Engine solves allocation batches. It holds only configuration and is safe
// for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine using cfg with defaults applied.
func NewEngine(cfg Config) *Engine {
	cfg.SetDefaults()
	return &Engine{cfg: cfg}
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// candidate is an item mapped to knapsack value and weight. score is the
// priority value reported in results.
type candidate struct {
	value  int
	score  int
	weight int
}

// Allocate picks the subset of items that fits capacity (watts) with the
// highest total priority value. It never fails: an empty batch or a
// non-positive capacity yields an empty selection.
func (e *Engine) Allocate(items []Item, capacity float64, mode Mode) Result {
	start := time.Now()
	capUnits := e.capacityUnits(capacity)
	switch {
	case mode == ModeAuto:
		mode = e.Choose(len(items), capUnits)
	case mode == ModeExact && e.tableTooLarge(len(items), capUnits):
		// a pinned EXACT still has to fit the table budget
		mode = ModeApproximate
	}
	res := Result{Algorithm: mode, CapacityUnits: capUnits, SelectedIDs: []string{}}
	if len(items) == 0 {
		res.Duration = time.Since(start)
		return res
	}

	cands := e.candidates(items)
	var chosen []bool
	if mode == ModeExact {
		chosen = solveExact(cands, capUnits)
	} else {
		chosen = solveGreedy(cands, capUnits)
	}

	powers := make([]float64, 0, len(items))
	for i, ok := range chosen {
		if !ok {
			continue
		}
		res.SelectedIDs = append(res.SelectedIDs, items[i].TerminalID)
		res.TotalValue += cands[i].score
		res.UsedUnits += cands[i].weight
		powers = append(powers, sanitizePower(items[i].Power))
	}
	if len(powers) > 0 {
		res.TotalPower = floats.Sum(powers)
	}
	res.Duration = time.Since(start)
	return res
}

// Choose returns the solver AUTO resolves to for n items and capUnits.
func (e *Engine) Choose(n, capUnits int) Mode {
	if n > e.cfg.MaxExactItems {
		return ModeApproximate
	}
	if e.tableTooLarge(n, capUnits) {
		return ModeApproximate
	}
	return ModeExact
}

func (e *Engine) tableTooLarge(n, capUnits int) bool {
	return float64(capUnits)*float64(n) > float64(e.cfg.MaxExactCells)
}

func (e *Engine) capacityUnits(capacity float64) int {
	if math.IsNaN(capacity) || capacity <= 0 {
		return 0
	}
	u := math.Floor(capacity / e.cfg.QuantizeUnitW)
	if u > maxCapacityUnits {
		return maxCapacityUnits
	}
	return int(u)
}

func (e *Engine) candidates(items []Item) []candidate {
	values, scores := priorityValues(items)
	out := make([]candidate, len(items))
	for i, it := range items {
		w := math.Round(sanitizePower(it.Power) / e.cfg.QuantizeUnitW)
		if w > maxCapacityUnits {
			w = maxCapacityUnits
		}
		weight := int(w)
		if weight < 1 {
			weight = 1
		}
		out[i] = candidate{value: values[i], score: scores[i], weight: weight}
	}
	return out
}

// priorityValues maps priorities to knapsack values so that priority 1 is the
// most valuable. Explicit priorities score maxP-p+1 and unset ones score 0.
// Solver values scale explicit scores by the number of unset items plus one
// and give each unset item 1, so unset items only decide between selections
// of equal explicit score.
func priorityValues(items []Item) (values, scores []int) {
	maxP, unset := 0, 0
	for _, it := range items {
		if it.Priority <= 0 {
			unset++
			continue
		}
		if it.Priority > maxP {
			maxP = it.Priority
		}
	}
	scale := unset + 1
	values = make([]int, len(items))
	scores = make([]int, len(items))
	for i, it := range items {
		if it.Priority <= 0 {
			values[i] = 1
			continue
		}
		scores[i] = maxP - it.Priority + 1
		values[i] = scores[i] * scale
	}
	return values, scores
}

func sanitizePower(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return p
}

// solveExact runs the 0/1 knapsack recurrence over a rolling value row and a
// full keep table for backtracking. An item is taken only when strictly
// better, so earlier items win ties.
func solveExact(cands []candidate, capUnits int) []bool {
	n := len(cands)
	chosen := make([]bool, n)
	width := capUnits + 1
	best := make([]int, width)
	keep := make([]bool, n*width)
	for i, c := range cands {
		row := keep[i*width : (i+1)*width]
		for w := capUnits; w >= c.weight; w-- {
			if take := best[w-c.weight] + c.value; take > best[w] {
				best[w] = take
				row[w] = true
			}
		}
	}
	w := capUnits
	for i := n - 1; i >= 0; i-- {
		if keep[i*width+w] {
			chosen[i] = true
			w -= cands[i].weight
		}
	}
	return chosen
}

// solveGreedy fills capacity by descending value density; equal densities
// prefer the lighter item and then input order.
func solveGreedy(cands []candidate, capUnits int) []bool {
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := cands[order[a]], cands[order[b]]
		// compare va/wa against vb/wb without division
		l, r := ca.value*cb.weight, cb.value*ca.weight
		if l != r {
			return l > r
		}
		return ca.weight < cb.weight
	})
	chosen := make([]bool, len(cands))
	used := 0
	for _, i := range order {
		if used+cands[i].weight <= capUnits {
			chosen[i] = true
			used += cands[i].weight
		}
	}
	return chosen
}
