package trace

// TraceSummary aggregates statistics from a RunTrace.
type TraceSummary struct {
	TotalEvents  int
	Duration     float64        // simulation time spanned by the trace
	EventRate    float64        // events per unit simulation time
	CountsByType map[string]int // event type name → count
	Absorbed     int            // events that ended with a particle absorbed
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *TraceSummary {
	summary := &TraceSummary{
		CountsByType: make(map[string]int),
	}
	if rt == nil || len(rt.Events) == 0 {
		return summary
	}

	summary.TotalEvents = len(rt.Events)
	for _, e := range rt.Events {
		summary.CountsByType[e.Type]++
		if e.Outcome == "absorbed" {
			summary.Absorbed++
		}
	}

	summary.Duration = rt.Events[len(rt.Events)-1].Time - rt.Events[0].Time + rt.Events[0].Dt
	if summary.Duration > 0 {
		summary.EventRate = float64(summary.TotalEvents) / summary.Duration
	}

	return summary
}
