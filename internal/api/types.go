package api

// calculationRequest is the inbound body for POST /api/v1/calculate-deflection/.
// Field names are the caller's contract — do not rename.
type calculationRequest struct {
	Identifier string            `json:"identifier"`
	Items      []lineItemRequest `json:"items"`

	// Callback optionally redirects this request's result to a different
	// target than the configured upstream.
	Callback *callbackRequest `json:"callback,omitempty"`
}

type lineItemRequest struct {
	ReferenceID     string           `json:"referenceId"`
	Quantity        int              `json:"quantity"`
	SpanLength      float64          `json:"spanLength"`      // meters
	DistributedLoad float64          `json:"distributedLoad"` // kN/m
	Material        *materialRequest `json:"material"`
}

type materialRequest struct {
	ElasticityModulus      float64 `json:"elasticityModulus"` // GPa
	MomentOfInertia        float64 `json:"momentOfInertia"`   // cm⁴
	AllowedDeflectionRatio int     `json:"allowedDeflectionRatio"`
}

type callbackRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// acceptedResponse is the 202 body returned on successful enqueue.
type acceptedResponse struct {
	Message       string `json:"message"`
	Identifier    string `json:"identifier"`
	ItemsCount    int    `json:"itemsCount"`
	EstimatedTime string `json:"estimatedTime"`
}

// healthResponse is the body for GET /api/health/.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
