package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/congregate-api/internal/observability/errors"
	"github.com/target/congregate-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultAllowed  = "allowed"
	ResultRejected = "rejected"
	ResultDegraded = "degraded"
	ResultSuccess  = "success"
	ResultError    = "error"
)

// RequestMetric describes one completed pipeline run.
type RequestMetric struct {
	Route    string
	Version  string
	Status   int
	Duration time.Duration
}

// EmitRequest records a completed request.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"route":        in.Route,
		"version":      in.Version,
		"status_class": strconv.Itoa(in.Status/100) + "xx",
	}
	sink.Count("pipeline.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("pipeline.duration", in.Duration, CloneTags(tags))
	}
}

// EmitRejection records a stage terminating the chain.
func EmitRejection(sink statsd.Sink, stage, code string) {
	if sink == nil {
		return
	}
	sink.Count("pipeline.rejected", 1, map[string]string{"stage": stage, "code": code})
}

// EmitRateLimitDecision records a limiter outcome for a scope.
func EmitRateLimitDecision(sink statsd.Sink, scope, result string) {
	if sink == nil {
		return
	}
	sink.Count("ratelimit.decision", 1, map[string]string{"scope": scope, "result": result})
}

// EmitBackendState records whether a limiter's backend is reachable.
func EmitBackendState(sink statsd.Sink, scope string, connected bool, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"scope": scope}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	value := 0.0
	if connected {
		value = 1
	}
	sink.Gauge("ratelimit.backend_connected", value, tags)
}

// EmitSweep records a session sweep.
func EmitSweep(sink statsd.Sink, removed int, duration time.Duration, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	tags := map[string]string{"result": result}
	sink.Count("sessions.swept", int64(removed), tags)
	sink.Timing("sessions.sweep_duration", duration, CloneTags(tags))
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k != "" {
			out[k] = v
		}
	}
	return out
}
