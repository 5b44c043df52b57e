package callback

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deflectd/deflectd/internal/calc"
	"github.com/deflectd/deflectd/internal/config"
	"github.com/deflectd/deflectd/internal/metrics"
)

// identifierPlaceholder is the literal replaced in the result path template.
const identifierPlaceholder = "{identifier}"

// Override is an optional per-request callback target carried alongside a
// job. Either field's zero value means "use the configured upstream".
type Override struct {
	URL   string
	Token string
}

// payload is the callback wire format. Field names are the upstream
// service's contract — do not rename.
type payload struct {
	Identifier          string        `json:"identifier"`
	CalculatedAt        string        `json:"calculatedAt"` // RFC3339 UTC
	WithinNorm          bool          `json:"withinNorm"`
	AggregateDeflection float64       `json:"aggregateDeflection"`
	Items               []payloadItem `json:"items"`
}

type payloadItem struct {
	ReferenceID string  `json:"referenceId"`
	Deflection  float64 `json:"deflection"`
}

// Sender posts results to the upstream system. It builds its HTTP client
// once at construction and is safe for concurrent use by many workers.
type Sender struct {
	cfg    config.Upstream
	client *http.Client
	m      *metrics.Metrics
}

// New creates a Sender for the given upstream configuration.
func New(cfg config.Upstream, m *metrics.Metrics) *Sender {
	return &Sender{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.VerifyTLS, //nolint:gosec // user-configured, for local self-signed upstreams
				},
			},
		},
		m: m,
	}
}

// Deliver makes one attempt to post res to the upstream system. Connection
// failure, timeout and a non-2xx status are all the same terminal failure;
// the response body is never interpreted.
func (s *Sender) Deliver(ctx context.Context, res *calc.Result, ov Override) error {
	body, err := json.Marshal(toPayload(res))
	if err != nil {
		return fmt.Errorf("callback: encode payload: %w", err)
	}

	target := s.targetURL(res.Identifier, ov)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("callback: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(s.cfg.AuthHeader, s.authValue(ov))

	resp, err := s.client.Do(req)
	if err != nil {
		s.m.CallbacksFailed.Add(1)
		return fmt.Errorf("callback: post %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.m.CallbacksFailed.Add(1)
		return fmt.Errorf("callback: %s returned HTTP %d", target, resp.StatusCode)
	}

	s.m.CallbacksDelivered.Add(1)
	slog.Debug("callback: delivered",
		"identifier", res.Identifier, "status", resp.StatusCode)
	return nil
}

// targetURL resolves the delivery URL: the per-request override when set,
// otherwise base URL + result path with the identifier substituted. The
// placeholder is honored in override URLs too.
func (s *Sender) targetURL(identifier string, ov Override) string {
	escaped := url.PathEscape(identifier)
	if ov.URL != "" {
		return strings.ReplaceAll(ov.URL, identifierPlaceholder, escaped)
	}
	return s.cfg.BaseURL + strings.ReplaceAll(s.cfg.ResultPath, identifierPlaceholder, escaped)
}

// authValue builds the auth header value. A configured scheme is prefixed
// only when the token does not already carry one (no embedded space).
func (s *Sender) authValue(ov Override) string {
	token := s.cfg.AuthToken
	if ov.Token != "" {
		token = ov.Token
	}
	if s.cfg.AuthScheme != "" && !strings.Contains(token, " ") {
		return s.cfg.AuthScheme + " " + token
	}
	return token
}

// toPayload maps a calc.Result to the wire format.
func toPayload(res *calc.Result) payload {
	items := make([]payloadItem, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, payloadItem{
			ReferenceID: it.ReferenceID,
			Deflection:  it.DeflectionMM,
		})
	}
	return payload{
		Identifier:          res.Identifier,
		CalculatedAt:        res.ComputedAt.UTC().Format(time.RFC3339),
		WithinNorm:          res.WithinNorm,
		AggregateDeflection: res.AggregateMM,
		Items:               items,
	}
}
