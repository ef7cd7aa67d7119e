package sim

import "fmt"

// EventType enumerates the kinetic moves a particle can make. Each type has
// its own per-site rate grid in RatesManager; a simulation step draws one
// (type, site) pair with probability proportional to its rate.
type EventType int

const (
	// EventFlip reverses a particle's heading (180 degrees).
	EventFlip EventType = iota
	// EventRotateCW turns a particle a quarter turn clockwise.
	EventRotateCW
	// EventRotateCCW turns a particle a quarter turn counterclockwise.
	EventRotateCCW
	// EventHop moves a particle one cell forward along its own heading.
	EventHop
	// EventAdvect transports a particle one cell downstream with the flow,
	// leaving its heading unchanged.
	EventAdvect

	numEventTypes
)

func (t EventType) String() string {
	switch t {
	case EventFlip:
		return "flip"
	case EventRotateCW:
		return "rotate-cw"
	case EventRotateCCW:
		return "rotate-ccw"
	case EventHop:
		return "hop"
	case EventAdvect:
		return "advect"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is the outcome of a single kinetic Monte Carlo step: which move
// fired, where, and how much simulation time elapsed waiting for it.
type Event struct {
	Type EventType
	// X, Y is the site the event fired at (the particle's position before
	// the move).
	X, Y int
	// Direction is the transport direction for EventAdvect and the
	// particle's heading at selection time otherwise.
	Direction Orientation
	// Dt is the exponential waiting time drawn for this step.
	Dt float64
	// Time is the simulation clock after the step.
	Time float64
	// Outcome qualifies hop and advect events (moved, reflected, absorbed,
	// blocked). Reorientation events always report HopMoved.
	Outcome HopOutcome
}

func (e Event) String() string {
	return fmt.Sprintf("%s@(%d,%d) t=%.4f", e.Type, e.X, e.Y, e.Time)
}

// apply mutates the lattice according to the event type and reports how the
// move resolved.
func (e *Event) apply(l *ParticleLattice) (Move, error) {
	switch e.Type {
	case EventFlip:
		return Move{X: e.X, Y: e.Y}, l.FlipParticle(e.X, e.Y)
	case EventRotateCW:
		return Move{X: e.X, Y: e.Y}, l.RotateParticle(e.X, e.Y, true)
	case EventRotateCCW:
		return Move{X: e.X, Y: e.Y}, l.RotateParticle(e.X, e.Y, false)
	case EventHop:
		return l.MoveParticle(e.X, e.Y)
	case EventAdvect:
		return l.TransportParticle(e.X, e.Y, e.Direction)
	}
	return Move{}, fmt.Errorf("unknown event type %d", int(e.Type))
}
