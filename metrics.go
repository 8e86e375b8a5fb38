package netcore

import (
	"expvar"
	"fmt"
)

// getVarInt returns (creating if necessary) an *expvar.Int scoped to one
// instance, under "netcore.<subsystem>.<id>.<name>".
func getVarInt(subsystem, id, name string) *expvar.Int {
	full := fmt.Sprintf("netcore.%s.%s.%s", subsystem, id, name)
	if v := expvar.Get(full); v != nil {
		return v.(*expvar.Int)
	}
	return expvar.NewInt(full)
}

// getVarMap returns (creating if necessary) an *expvar.Map scoped to one
// instance, under "netcore.<subsystem>.<id>.<name>".
func getVarMap(subsystem, id, name string) *expvar.Map {
	full := fmt.Sprintf("netcore.%s.%s.%s", subsystem, id, name)
	if v := expvar.Get(full); v != nil {
		return v.(*expvar.Map)
	}
	return expvar.NewMap(full)
}

// InstanceMetrics is the common counter set published by dns.Instance
// and httpcore.Instance.
type InstanceMetrics struct {
	Requests  *expvar.Int
	Successes *expvar.Int
	Failures  *expvar.Int
	Retries   *expvar.Int
	ByKind    *expvar.Map
}

// NewInstanceMetrics creates the counter set for one instance, identified
// by subsystem ("dns" or "http") and instance id.
func NewInstanceMetrics(subsystem, id string) *InstanceMetrics {
	return &InstanceMetrics{
		Requests:  getVarInt(subsystem, id, "requests"),
		Successes: getVarInt(subsystem, id, "successes"),
		Failures:  getVarInt(subsystem, id, "failures"),
		Retries:   getVarInt(subsystem, id, "retries"),
		ByKind:    getVarMap(subsystem, id, "failures_by_kind"),
	}
}

// RecordOutcome updates the counters given the Kind a token completed with.
func (m *InstanceMetrics) RecordOutcome(kind Kind) {
	if kind == KindOk {
		m.Successes.Add(1)
		return
	}
	m.Failures.Add(1)
	m.ByKind.Add(kind.String(), 1)
}
