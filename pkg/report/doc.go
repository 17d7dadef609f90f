// Package report renders evaluation results into plain-text report tables.
//
// Five table kinds are produced (results, gradients, simulations,
// perturbations, constraints), each with a fixed column schema mapping raw
// result field paths to display labels. Result records delivered by
// finished-evaluation events are flattened into row fragments, accumulated
// per table kind, and on every update the full accumulated table is
// re-rendered and the kind's output file overwritten. The output is a
// human-readable report, not a stable machine format.
package report
