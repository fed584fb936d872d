// Package allocation selects which terminals may be energized under a single
// capacity budget.
//
// The selection is a 0/1 knapsack: each terminal weighs its measured power
// (quantized to whole units) and is worth a value derived from its priority.
// Small batches are solved exactly with dynamic programming, large ones with a
// density-ordered greedy fill. The engine is a pure function of its inputs and
// never performs I/O.
package allocation
