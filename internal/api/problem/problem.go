// Package problem renders RFC 7807 problem+json error responses.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

const mediaType = "application/problem+json"

// Sentinel errors handlers map onto problem responses.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

type ProblemDetails struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Errors   map[string]interface{} `json:"errors,omitempty"`
}

// Option tweaks a ProblemDetails before it is written.
type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) { p.Detail = detail }
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) { p.Instance = instance }
}

func WithErrors(errs map[string]interface{}) Option {
	return func(p *ProblemDetails) { p.Errors = errs }
}

// Write builds a problem response and sends it. The underlying error text is
// exposed as the detail only in development and test; elsewhere clients see
// the generic status text. Instance defaults to the request path.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	p := ProblemDetails{Type: typ, Title: title, Status: status}
	for _, opt := range opts {
		opt(&p)
	}

	if p.Detail == "" && err != nil {
		switch env {
		case "development", "test":
			p.Detail = err.Error()
		default:
			p.Detail = http.StatusText(status)
		}
	}
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}

	if err != nil && status >= 400 {
		logProblem(r, status, typ, title, err)
	}

	WriteProblem(w, p)
}

// WriteProblem serializes an already-built ProblemDetails.
func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	w.Header().Set("Content-Type", mediaType)

	payload, err := json.Marshal(p)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"Internal Server Error","status":500}`))
		return
	}

	w.WriteHeader(p.Status)
	_, _ = w.Write(payload)
}

func logProblem(r *http.Request, status int, typ, title string, err error) {
	logger := zerolog.Ctx(r.Context())
	event := logger.Warn()
	if status >= 500 {
		event = logger.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("type", typ).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Msg(title)
}
