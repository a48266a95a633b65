package proposals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_SellerResolvesPending(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusAccepted, ActorSeller))
	assert.True(t, CanTransition(StatusPending, StatusDeclined, ActorSeller))
	assert.False(t, CanTransition(StatusPending, StatusWithdrawn, ActorSeller))
}

func TestCanTransition_BuyerOnlyWithdraws(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusWithdrawn, ActorBuyer))
	assert.False(t, CanTransition(StatusPending, StatusAccepted, ActorBuyer))
	assert.False(t, CanTransition(StatusPending, StatusDeclined, ActorBuyer))
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	terminal := []string{StatusAccepted, StatusDeclined, StatusWithdrawn}
	targets := []string{StatusPending, StatusAccepted, StatusDeclined, StatusWithdrawn}

	for _, from := range terminal {
		for _, to := range targets {
			assert.False(t, CanTransition(from, to, ActorBuyer), "%s -> %s (buyer)", from, to)
			assert.False(t, CanTransition(from, to, ActorSeller), "%s -> %s (seller)", from, to)
		}
	}
}

func TestCanTransition_UnknownTargetRejected(t *testing.T) {
	assert.False(t, CanTransition(StatusPending, "archived", ActorSeller))
	assert.False(t, CanTransition(StatusPending, "", ActorBuyer))
}
