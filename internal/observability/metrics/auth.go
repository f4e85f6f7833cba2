package metrics

import (
	"time"

	obserrors "github.com/target/grant-portal/internal/observability/errors"
	"github.com/target/grant-portal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Profile resolution sources.
const (
	SourceRecord   = "record"
	SourceFallback = "fallback"
)

// AuthActionMetric captures a user-initiated auth action (login, signup, logout, federated).
type AuthActionMetric struct {
	Action   string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitAuthAction emits standardised auth action metrics.
func EmitAuthAction(sink statsd.Sink, in AuthActionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"action": in.Action,
		"result": in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)

	sink.Count("auth.action", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.action.duration", in.Duration, CloneTags(tags))
	}
}

// GuardMetric captures a single route guard decision.
type GuardMetric struct {
	Outcome string
	Route   string
	Wait    time.Duration
}

// EmitGuardDecision counts guard outcomes and records how long the guard waited for readiness.
func EmitGuardDecision(sink statsd.Sink, in GuardMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"outcome": in.Outcome}
	if in.Route != "" {
		tags["route"] = in.Route
	}
	sink.Count("guard.decision", 1, tags)
	if in.Wait > 0 {
		sink.Timing("guard.ready_wait", in.Wait, CloneTags(tags))
	}
}

// ProfileResolutionMetric captures one identity-to-profile resolution.
type ProfileResolutionMetric struct {
	Source   string
	Duration time.Duration
	Err      error
}

// EmitProfileResolution counts resolutions by source. Err is the swallowed record-store failure, if any.
func EmitProfileResolution(sink statsd.Sink, in ProfileResolutionMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}
	tags := map[string]string{
		"source": in.Source,
		"result": result,
	}
	addErrorClass(tags, result, in.Err)

	sink.Count("profile.resolution", 1, tags)
	if in.Duration > 0 {
		sink.Timing("profile.resolution.duration", in.Duration, CloneTags(tags))
	}
}

func addErrorClass(tags map[string]string, result string, err error) {
	if err == nil || result != ResultError {
		return
	}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
