package shell

// Availability is the result of a gate check.
type Availability struct {
	Available bool
	Reason    string
}

// Available returns a positive result.
func Available() Availability {
	return Availability{Available: true}
}

// Unavailable returns a negative result carrying a human readable reason.
func Unavailable(reason string) Availability {
	return Availability{Reason: reason}
}

// Gate is a named precondition consulted before a command runs.
type Gate struct {
	Name  string
	Check func() Availability
}

// Evaluate runs the gate. A nil gate is always available.
func (g *Gate) Evaluate() Availability {
	if g == nil || g.Check == nil {
		return Available()
	}
	return g.Check()
}
