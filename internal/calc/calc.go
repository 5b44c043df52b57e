package calc

import (
	"fmt"
	"math"
	"time"
)

// unitScale folds the unit conversions of the deflection formula into one
// constant: kN/m → N/m (×1e3), GPa → Pa (×1e9), cm⁴ → m⁴ (×1e-8), and the
// final m → mm (×1e3). Combined: 1e3 × 1e3 / (1e9 × 1e-8) = 1e5.
const unitScale = 1e5

// Request is one accepted calculation request. It is immutable once handed
// to the dispatcher; item order is preserved 1:1 in the result.
type Request struct {
	// Identifier is the caller-supplied correlation key, echoed back
	// unchanged in the result. Not interpreted beyond pass-through.
	Identifier string

	Items []LineItem
}

// LineItem is one beam entry within a request.
type LineItem struct {
	// ReferenceID is the caller's per-item key, echoed back in the result.
	ReferenceID string

	// Quantity is the number of identical beams this item represents (≥1).
	// It weights the item's contribution to the aggregate deflection.
	Quantity int

	// SpanM is the beam span in meters (>0).
	SpanM float64

	// LoadKNM is the uniformly distributed load in kN/m (≥0).
	LoadKNM float64

	Material Material
}

// Material holds the section and material parameters for one line item.
// Every item carries a complete Material — there is no fallback lookup.
type Material struct {
	// ElasticityGPa is the elastic modulus in GPa (>0).
	ElasticityGPa float64

	// InertiaCM4 is the second moment of area in cm⁴ (>0).
	InertiaCM4 float64

	// AllowedRatio is the span/N deflection limit, e.g. 250 for span/250 (≥1).
	AllowedRatio int
}

// Result is the outcome of one computation, produced once per accepted
// request and handed to the callback sender.
type Result struct {
	Identifier  string
	ComputedAt  time.Time
	WithinNorm  bool
	AggregateMM float64
	Items       []ItemResult
}

// ItemResult is the computed deflection for one input item, in input order.
type ItemResult struct {
	ReferenceID  string
	DeflectionMM float64
}

// ItemError reports an item whose numeric values are outside the formula's
// domain. It carries the offending item's reference so the dispatcher can log
// which item poisoned the job.
type ItemError struct {
	Ref    string
	Reason string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %q: %s", e.Ref, e.Reason)
}

// Compute calculates per-item and aggregate deflections for req.
//
// now is passed explicitly so callers (and tests) control the clock; it
// becomes the result's ComputedAt. Use time.Now().UTC() in production.
//
// Zero or negative span, elasticity, inertia, allowed ratio or quantity on
// any item returns an *ItemError before any division can produce NaN or Inf.
// Ingress validation rejects such requests up front; this guard is the local
// invariant that keeps the formula's domain safe regardless of the caller.
func Compute(req Request, now time.Time) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("compute: request %q has no items", req.Identifier)
	}

	out := &Result{
		Identifier: req.Identifier,
		ComputedAt: now,
		WithinNorm: true,
		Items:      make([]ItemResult, 0, len(req.Items)),
	}

	var weightedSum float64
	var totalQty int

	for _, item := range req.Items {
		if err := checkDomain(item); err != nil {
			return nil, err
		}

		d := deflectionMM(item)

		// The allowed limit is span/N, with the span in millimeters.
		// The boundary itself is within norm.
		limit := item.SpanM * 1000 / float64(item.Material.AllowedRatio)
		if d > limit {
			out.WithinNorm = false
		}

		out.Items = append(out.Items, ItemResult{
			ReferenceID:  item.ReferenceID,
			DeflectionMM: d,
		})
		weightedSum += float64(item.Quantity) * d
		totalQty += item.Quantity
	}

	out.AggregateMM = round6(weightedSum / float64(totalQty))
	return out, nil
}

// deflectionMM evaluates 5wL⁴/384EI for one item, in millimeters,
// rounded to 6 decimals.
func deflectionMM(item LineItem) float64 {
	l4 := item.SpanM * item.SpanM * item.SpanM * item.SpanM
	d := 5 * item.LoadKNM * l4 /
		(384 * item.Material.ElasticityGPa * item.Material.InertiaCM4) * unitScale
	return round6(d)
}

// checkDomain rejects values the formula cannot safely evaluate.
func checkDomain(item LineItem) error {
	switch {
	case item.SpanM <= 0:
		return &ItemError{Ref: item.ReferenceID, Reason: "span must be positive"}
	case item.Material.ElasticityGPa <= 0:
		return &ItemError{Ref: item.ReferenceID, Reason: "elasticity modulus must be positive"}
	case item.Material.InertiaCM4 <= 0:
		return &ItemError{Ref: item.ReferenceID, Reason: "moment of inertia must be positive"}
	case item.Material.AllowedRatio <= 0:
		return &ItemError{Ref: item.ReferenceID, Reason: "allowed deflection ratio must be positive"}
	case item.Quantity < 1:
		return &ItemError{Ref: item.ReferenceID, Reason: "quantity must be at least 1"}
	}
	return nil
}

// round6 rounds v to 6 decimal places — sub-micrometer precision is noise
// for beam deflections and rounding keeps the wire values stable.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
