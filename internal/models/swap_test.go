package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTableMatchesLifecycle(t *testing.T) {
	edges := map[SwapStatus][]SwapStatus{}
	for _, tr := range swapTransitions {
		for _, from := range tr.From {
			edges[from] = append(edges[from], tr.To)
		}
	}

	assert.ElementsMatch(t, []SwapStatus{SwapAccepted, SwapRejected, SwapCancelled}, edges[SwapPending])
	assert.ElementsMatch(t, []SwapStatus{SwapCompleted, SwapCancelled}, edges[SwapAccepted])
	for _, terminal := range []SwapStatus{SwapRejected, SwapCancelled, SwapCompleted} {
		assert.True(t, terminal.Terminal())
		assert.Empty(t, edges[terminal], "terminal status %s has outgoing edges", terminal)
	}
	for _, targets := range edges {
		assert.NotContains(t, targets, SwapPending)
	}
}

func TestLookupTransitionActors(t *testing.T) {
	accept, ok := LookupTransition(SwapActionAccept)
	assert.True(t, ok)
	assert.Equal(t, ActorRecipient, accept.Actor)

	cancel, _ := LookupTransition(SwapActionCancel)
	assert.Equal(t, ActorEitherParty, cancel.Actor)
	assert.Equal(t, []string{"pending", "accepted"}, cancel.FromStrings())

	_, ok = LookupTransition("archive")
	assert.False(t, ok)
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("b", "a"), PairKey("a", "b"))
	assert.Equal(t, "a:b", PairKey("b", "a"))
}

func TestSwapParticipants(t *testing.T) {
	s := SwapRequest{RequesterID: "a", RecipientID: "b"}
	assert.True(t, s.IsParticipant("a"))
	assert.False(t, s.IsParticipant("c"))
	assert.False(t, s.IsParticipant(""))
	assert.Equal(t, "b", s.OtherParty("a"))
	assert.Equal(t, "a", s.OtherParty("b"))
}

func TestUserOffersTrimsExactly(t *testing.T) {
	u := User{SkillsOffered: []string{" Guitar ", "Python"}}
	assert.True(t, u.Offers("Guitar"))
	assert.True(t, u.Offers(" Python"))
	assert.False(t, u.Offers("guitar"))
	assert.False(t, u.Offers(""))
}
