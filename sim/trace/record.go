package trace

// EventRecord captures a single applied kinetic event.
type EventRecord struct {
	Step    int     // 1-based event index within the run
	Time    float64 // simulation clock after the event
	Dt      float64 // waiting time drawn for the event
	Type    string  // event type name ("flip", "hop", ...)
	X, Y    int     // site the event fired at
	Outcome string  // how a move resolved ("moved", "absorbed", ...)
}
