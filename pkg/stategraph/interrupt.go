package stategraph

// InterruptPolicy declares the nodes execution pauses around for
// human-in-the-loop review. A pause-before interrupt stops the run
// before the named node executes; a pause-after interrupt stops it
// right after the node's update has been merged and persisted.
//
// The zero value never pauses.
type InterruptPolicy struct {
	before map[string]struct{}
	after  map[string]struct{}
}

// NewInterruptPolicy builds a policy from node ID lists.
func NewInterruptPolicy(before, after []string) InterruptPolicy {
	return InterruptPolicy{
		before: toSet(before),
		after:  toSet(after),
	}
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// PauseBefore reports whether the run pauses before executing nodeID.
func (p InterruptPolicy) PauseBefore(nodeID string) bool {
	_, ok := p.before[nodeID]
	return ok
}

// PauseAfter reports whether the run pauses after executing nodeID.
func (p InterruptPolicy) PauseAfter(nodeID string) bool {
	_, ok := p.after[nodeID]
	return ok
}

// Empty reports whether the policy never pauses.
func (p InterruptPolicy) Empty() bool {
	return len(p.before) == 0 && len(p.after) == 0
}
