package proposals

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusWithdrawn = "withdrawn"
)

// Actor identifies which side of a proposal is acting on it.
type Actor int

const (
	ActorBuyer Actor = iota
	ActorSeller
)

// CanTransition reports whether the actor may move a proposal from one
// status to another. The flow is linear: pending is the only live state;
// the seller resolves it (accept/decline), the buyer may withdraw it.
// Terminal states never change.
func CanTransition(from, to string, actor Actor) bool {
	if from != StatusPending {
		return false
	}
	switch to {
	case StatusAccepted, StatusDeclined:
		return actor == ActorSeller
	case StatusWithdrawn:
		return actor == ActorBuyer
	default:
		return false
	}
}
