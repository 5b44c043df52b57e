package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deflectd/deflectd/internal/calc"
	"github.com/deflectd/deflectd/internal/callback"
	"github.com/deflectd/deflectd/internal/config"
	"github.com/deflectd/deflectd/internal/metrics"
)

const serviceName = "deflectd"

// Submitter is the dispatcher-side of the ingress. dispatch.Dispatcher
// satisfies it; tests inject fakes.
type Submitter interface {
	Submit(req calc.Request, ov callback.Override)
}

// Handler is the HTTP handler for the inbound API.
type Handler struct {
	d   Submitter
	cfg *config.Config
	m   *metrics.Metrics
	mux *http.ServeMux
}

// New creates a Handler wired to the given dispatcher and registers all routes.
func New(d Submitter, cfg *config.Config, m *metrics.Metrics) http.Handler {
	h := &Handler{d: d, cfg: cfg, m: m, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/calculate-deflection/", h.calculate)
	h.mux.HandleFunc("/api/health/", h.health)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// calculate handles POST /api/v1/calculate-deflection/ — validate, enqueue,
// answer 202. The response never depends on the computation's outcome.
func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/calculate-deflection/" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body calculationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.m.RequestsRejected.Add(1)
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if msg := validateRequest(&body); msg != "" {
		h.m.RequestsRejected.Add(1)
		jsonErr(w, http.StatusBadRequest, msg)
		return
	}

	req, ov := toDomain(&body)
	h.d.Submit(req, ov)

	jsonResp(w, http.StatusAccepted, acceptedResponse{
		Message:       "calculation accepted",
		Identifier:    body.Identifier,
		ItemsCount:    len(body.Items),
		EstimatedTime: estimatedTime(h.cfg.Jobs),
	})
}

// health handles GET /api/health/ — liveness only.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/health/" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, healthResponse{Status: "healthy", Service: serviceName})
}

// --- validation -------------------------------------------------------------

// validateRequest checks the decoded body once, before enqueueing. Returns
// an empty string when the request is valid, otherwise a message naming the
// offending field.
func validateRequest(body *calculationRequest) string {
	if body.Identifier == "" {
		return "identifier is required"
	}
	if len(body.Items) == 0 {
		return "items must not be empty"
	}
	for i, it := range body.Items {
		if it.ReferenceID == "" {
			return fmt.Sprintf("items[%d].referenceId is required", i)
		}
		if it.Quantity < 1 {
			return fmt.Sprintf("items[%d].quantity must be at least 1", i)
		}
		if it.SpanLength <= 0 {
			return fmt.Sprintf("items[%d].spanLength must be positive", i)
		}
		if it.DistributedLoad < 0 {
			return fmt.Sprintf("items[%d].distributedLoad must not be negative", i)
		}
		if it.Material == nil {
			return fmt.Sprintf("items[%d].material is required", i)
		}
		if it.Material.ElasticityModulus <= 0 {
			return fmt.Sprintf("items[%d].material.elasticityModulus must be positive", i)
		}
		if it.Material.MomentOfInertia <= 0 {
			return fmt.Sprintf("items[%d].material.momentOfInertia must be positive", i)
		}
		if it.Material.AllowedDeflectionRatio < 1 {
			return fmt.Sprintf("items[%d].material.allowedDeflectionRatio must be at least 1", i)
		}
	}
	if body.Callback != nil && body.Callback.URL == "" {
		return "callback.url is required when callback is present"
	}
	return ""
}

// toDomain maps a validated body onto the calculator's types.
func toDomain(body *calculationRequest) (calc.Request, callback.Override) {
	req := calc.Request{
		Identifier: body.Identifier,
		Items:      make([]calc.LineItem, 0, len(body.Items)),
	}
	for _, it := range body.Items {
		req.Items = append(req.Items, calc.LineItem{
			ReferenceID: it.ReferenceID,
			Quantity:    it.Quantity,
			SpanM:       it.SpanLength,
			LoadKNM:     it.DistributedLoad,
			Material: calc.Material{
				ElasticityGPa: it.Material.ElasticityModulus,
				InertiaCM4:    it.Material.MomentOfInertia,
				AllowedRatio:  it.Material.AllowedDeflectionRatio,
			},
		})
	}

	var ov callback.Override
	if body.Callback != nil {
		ov = callback.Override{URL: body.Callback.URL, Token: body.Callback.Token}
	}
	return req, ov
}

// estimatedTime renders the configured delay bounds for the 202 body.
func estimatedTime(jobs config.Jobs) string {
	min := int(jobs.DelayMin.Seconds())
	max := int(jobs.DelayMax.Seconds())
	if min == max {
		return fmt.Sprintf("%d seconds", max)
	}
	return fmt.Sprintf("%d-%d seconds", min, max)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
