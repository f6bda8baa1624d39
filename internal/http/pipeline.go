package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/target/congregate-api/internal/clock"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/observability/metrics"
	"github.com/target/congregate-api/internal/observability/statsd"
)

type resultKind int

const (
	resultContinue resultKind = iota
	resultHalt
	resultFail
)

// Result is a stage's verdict on a request.
type Result struct {
	kind resultKind
	resp Response
	err  error
}

// Continue passes the request to the next stage.
func Continue() Result { return Result{kind: resultContinue} }

// Halt ends the chain and writes resp as is.
func Halt(resp Response) Result { return Result{kind: resultHalt, resp: resp} }

// Fail ends the chain with an error rendered through the normalizer.
func Fail(err error) Result {
	if err == nil {
		err = apperrors.Internal("stage failed without an error")
	}
	return Result{kind: resultFail, err: err}
}

// Continued reports whether the chain should proceed.
func (r Result) Continued() bool { return r.kind == resultContinue }

// Err returns the failure carried by a Fail result.
func (r Result) Err() error { return r.err }

// Stage is one step of a request pipeline.
type Stage interface {
	Name() string
	Handle(rc *RequestContext) Result
}

type stageFunc struct {
	name string
	fn   func(rc *RequestContext) Result
}

func (s stageFunc) Name() string                     { return s.name }
func (s stageFunc) Handle(rc *RequestContext) Result { return s.fn(rc) }

// StageFunc adapts a function to a named Stage.
func StageFunc(name string, fn func(rc *RequestContext) Result) Stage {
	return stageFunc{name: name, fn: fn}
}

// HandlerFunc is the terminal handler of a chain. A returned *Response is
// written verbatim; any other value becomes the data of a success envelope.
type HandlerFunc func(rc *RequestContext) (any, error)

// ChainConfig groups the collaborators of a Chain.
type ChainConfig struct {
	Name       string
	Normalizer *apperrors.Normalizer
	Logger     *slog.Logger
	Metrics    statsd.Sink
	Clock      clock.Clock
	TrustProxy bool
}

// Chain runs an ordered list of stages and then a terminal handler. A Chain is
// immutable once composed and safe for concurrent use.
type Chain struct {
	name       string
	stages     []Stage
	handler    HandlerFunc
	normalizer *apperrors.Normalizer
	logger     *slog.Logger
	metrics    statsd.Sink
	clock      clock.Clock
	trustProxy bool
}

var _ http.Handler = (*Chain)(nil)

// Compose builds a Chain from handler and stages, in order.
func Compose(cfg ChainConfig, handler HandlerFunc, stages ...Stage) *Chain {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := clock.OrReal(cfg.Clock)
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = apperrors.NewNormalizer(apperrors.NormalizerOptions{Logger: logger, Metrics: cfg.Metrics, Clock: clk})
	}
	return &Chain{
		name:       cfg.Name,
		stages:     append([]Stage(nil), stages...),
		handler:    handler,
		normalizer: normalizer,
		logger:     logger.With("component", "pipeline", "route", cfg.Name),
		metrics:    cfg.Metrics,
		clock:      clk,
		trustProxy: cfg.TrustProxy,
	}
}

// Stages returns the stage names in execution order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// ServeHTTP implements http.Handler.
func (c *Chain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := c.clock.Now()
	rc := newRequestContext(w, r, c.trustProxy)
	status := c.run(rc)
	metrics.EmitRequest(c.metrics, metrics.RequestMetric{
		Route:    c.name,
		Version:  rc.Version.Name,
		Status:   status,
		Duration: c.clock.Now().Sub(start),
	})
}

func (c *Chain) run(rc *RequestContext) (status int) {
	stage := "handler"
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			c.logger.ErrorContext(rc.Context(), "panic",
				slog.Any("panic", p),
				slog.String("stage", stage),
				slog.String("stack", string(debug.Stack())))
			err := apperrors.Wrap(fmt.Errorf("%v", p), apperrors.ErrCodeInternal, apperrors.CategoryInfrastructure, "panic recovered")
			status = c.writeError(rc, "", err)
		}
	}()

	for _, s := range c.stages {
		stage = s.Name()
		res := s.Handle(rc)
		switch res.kind {
		case resultHalt:
			metrics.EmitRejection(c.metrics, stage, "halt")
			return c.write(rc, res.resp)
		case resultFail:
			return c.writeError(rc, stage, res.err)
		}
	}

	stage = "handler"
	data, err := c.handler(rc)
	if err != nil {
		return c.writeError(rc, "", err)
	}
	if resp, ok := data.(*Response); ok && resp != nil {
		return c.write(rc, *resp)
	}
	status = rc.status
	if status == 0 {
		status = http.StatusOK
	}
	WriteJSON(rc.Writer, status, Envelope{Success: true, Data: data, Meta: c.meta(rc)})
	return status
}

func (c *Chain) write(rc *RequestContext, resp Response) int {
	writeResponse(rc.Writer, resp)
	if resp.Status == 0 {
		return http.StatusOK
	}
	return resp.Status
}

// writeError renders err; stage is empty for handler failures.
func (c *Chain) writeError(rc *RequestContext, stage string, err error) int {
	n := c.normalizer.Normalize(rc.Context(), err, apperrors.RequestInfo{
		RequestID: rc.RequestID,
		Method:    rc.Method(),
		Path:      rc.Path(),
	})
	if stage != "" {
		metrics.EmitRejection(c.metrics, stage, string(n.Code))
	}
	WriteJSON(rc.Writer, n.Status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    string(n.Code),
			Message: n.ClientMessage(),
			Details: n.Details,
		},
		Meta: c.meta(rc),
	})
	return n.Status
}

func (c *Chain) meta(rc *RequestContext) Meta {
	return Meta{
		Timestamp:   c.clock.Now().UTC(),
		RequestID:   rc.RequestID,
		Version:     rc.Version.Name,
		Deprecation: rc.deprecation,
	}
}
