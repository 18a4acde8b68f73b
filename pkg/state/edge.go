package state

// Edge is a transition between two nodes. A nil Predicate always matches.
// Edges leaving the same node are evaluated in the order they were added.
type Edge struct {
	From      string
	To        string
	Predicate TransitionPredicate
}

// TransitionPredicate decides whether an edge may be taken.
type TransitionPredicate func(s State) bool

// Router chooses the next node from the current State. The returned name
// must be one of the targets declared when the router was added.
type Router func(s State) string

// AlwaysTransition returns a predicate that always matches.
func AlwaysTransition() TransitionPredicate {
	return func(State) bool { return true }
}

// KeyTrue matches when key holds the boolean true.
func KeyTrue(key string) TransitionPredicate {
	return func(s State) bool {
		return s.Bool(key)
	}
}

// Branch returns a Router selecting then when predicate matches and
// otherwise.
func Branch(predicate TransitionPredicate, then, otherwise string) Router {
	return func(s State) string {
		if predicate(s) {
			return then
		}
		return otherwise
	}
}
