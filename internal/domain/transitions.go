package domain

// TransitionPolicy decides whether a status change is legal. The historical
// behavior of the system is laissez-faire, so the default policy allows any
// transition; a stricter graph is available for deployments that want one.
type TransitionPolicy interface {
	Allowed(from, to TicketStatus) bool
}

// PermissiveTransitions allows every status transition.
type PermissiveTransitions struct{}

func (PermissiveTransitions) Allowed(from, to TicketStatus) bool { return true }

// TransitionTable is a TransitionPolicy backed by an explicit adjacency map.
type TransitionTable map[TicketStatus][]TicketStatus

func (t TransitionTable) Allowed(from, to TicketStatus) bool {
	for _, candidate := range t[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// StrictTransitions enforces the forward lifecycle with the usual loops back
// to in-progress. Not installed by default.
var StrictTransitions = TransitionTable{
	StatusNew:        {StatusInProgress, StatusPending, StatusCompleted},
	StatusInProgress: {StatusPending, StatusCompleted, StatusNew},
	StatusPending:    {StatusInProgress, StatusCompleted},
	StatusCompleted:  {StatusInProgress},
}
