// Package calc computes beam deflections for uniformly distributed loads on
// simply supported spans.
//
// Compute is a pure function: it performs no I/O, keeps no state, and accepts
// the clock as an argument so tests are deterministic. Per-item deflections
// use the standard 5wL⁴/384EI formula with inputs in kN/m, m, GPa and cm⁴,
// and results in millimeters. The aggregate deflection across a request is
// the quantity-weighted average of the per-item values.
package calc
