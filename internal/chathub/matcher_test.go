package chathub_test

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMatcher_SearchWithEmptyQueueEnqueues covers scenario 4: nobody waiting, the
// requester is queued and no pairing fires.
func TestMatcher_SearchWithEmptyQueueEnqueues(t *testing.T) {
	matcher, store := newTestMatcher("C")

	res, err := matcher.TryPair("C")

	require.NoError(t, err)
	assert.False(t, res.Paired)
	assert.Equal(t, []models.UserID{"C"}, matcher.Snapshot().Queue)
	assert.Equal(t, models.StateSearching, store.State("C"))
	assert.Equal(t, 0, matcher.ActiveChatCount())
}

// TestMatcher_SuccessfulMatch covers scenario 1.
func TestMatcher_SuccessfulMatch(t *testing.T) {
	matcher, store := newTestMatcher("A", "B")

	_, err := matcher.TryPair("A")
	require.NoError(t, err)
	res, err := matcher.TryPair("B")
	require.NoError(t, err)

	assert.True(t, res.Paired)
	assert.Equal(t, models.UserID("A"), res.Partner)
	assert.NotEmpty(t, res.RoomID)

	snap := matcher.Snapshot()
	assert.Empty(t, snap.Queue)
	assert.Equal(t, map[models.UserID]models.UserID{"A": "B", "B": "A"}, snap.Partners)
	assert.Equal(t, models.StateChatting, store.State("A"))
	assert.Equal(t, models.StateChatting, store.State("B"))
	assert.Equal(t, 1, matcher.ActiveChatCount())
}

// TestMatcherFIFOFairness: the oldest waiter is always matched first.
func TestMatcherFIFOFairness(t *testing.T) {
	matcher, _ := newTestMatcher("A", "B", "C", "D")

	require.NoError(t, matcher.Enqueue("A"))
	require.NoError(t, matcher.Enqueue("B"))

	res, err := matcher.TryPair("C")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("A"), res.Partner)

	res, err = matcher.TryPair("D")
	require.NoError(t, err)
	assert.Equal(t, models.UserID("B"), res.Partner)
}

func TestMatcher_EnqueueGuards(t *testing.T) {
	matcher, _ := newTestMatcher("A", "B", "C")

	require.NoError(t, matcher.Enqueue("A"))
	assert.ErrorIs(t, matcher.Enqueue("A"), chathub.ErrAlreadySearching)

	_, err := matcher.TryPair("A")
	assert.ErrorIs(t, err, chathub.ErrAlreadySearching, "a waiter must never pop itself")
	assert.Equal(t, 1, matcher.WaitingCount())

	_, err = matcher.TryPair("B")
	require.NoError(t, err)
	assert.ErrorIs(t, matcher.Enqueue("A"), chathub.ErrAlreadyChatting)
	_, err = matcher.TryPair("B")
	assert.ErrorIs(t, err, chathub.ErrAlreadyChatting)
}

func TestMatcher_CancelSearch(t *testing.T) {
	matcher, store := newTestMatcher("A", "B")

	require.NoError(t, matcher.Enqueue("A"))
	require.NoError(t, matcher.Enqueue("B"))

	assert.True(t, matcher.CancelSearch("A"))
	assert.Equal(t, models.StateIdle, store.State("A"))
	assert.Equal(t, []models.UserID{"B"}, matcher.Snapshot().Queue)

	assert.False(t, matcher.CancelSearch("A"), "second cancel is a no-op")
}

// TestMatcher_End covers scenario 3 and idempotent end.
func TestMatcher_End(t *testing.T) {
	matcher, store := newTestMatcher("A", "B", "C")
	_, _ = matcher.TryPair("A")
	pair, _ := matcher.TryPair("B")
	require.NoError(t, matcher.Enqueue("C"))

	res := matcher.End("A")
	assert.Equal(t, chathub.EndedChat, res.Outcome)
	assert.Equal(t, models.UserID("B"), res.Partner)
	assert.Equal(t, pair.RoomID, res.RoomID)
	assert.Empty(t, matcher.Snapshot().Partners)
	assert.Equal(t, models.StateIdle, store.State("A"))
	assert.Equal(t, models.StateIdle, store.State("B"))

	assert.Equal(t, chathub.EndedSearch, matcher.End("C").Outcome)
	assert.Equal(t, models.StateIdle, store.State("C"))

	assert.Equal(t, chathub.NotActive, matcher.End("A").Outcome)
	assert.Equal(t, chathub.NotActive, matcher.End("B").Outcome)
}

func TestMatcher_PairAndUnpair(t *testing.T) {
	matcher, _ := newTestMatcher("A", "B", "C")
	require.NoError(t, matcher.Enqueue("A"))

	roomID, err := matcher.Pair("A", "B")
	require.NoError(t, err)
	assert.NotEmpty(t, roomID)
	assert.Empty(t, matcher.Snapshot().Queue, "pairing removes users from the queue")

	_, err = matcher.Pair("B", "C")
	assert.ErrorIs(t, err, chathub.ErrAlreadyPaired)

	partner, gotRoom, ok := matcher.Unpair("B")
	assert.True(t, ok)
	assert.Equal(t, models.UserID("A"), partner)
	assert.Equal(t, roomID, gotRoom)

	_, _, ok = matcher.Unpair("B")
	assert.False(t, ok, "unpair is idempotent")
	_, ok = matcher.Partner("A")
	assert.False(t, ok)
}

func TestMatcher_UnpairIf(t *testing.T) {
	matcher, _ := newTestMatcher("A", "B", "C")
	_, err := matcher.Pair("A", "B")
	require.NoError(t, err)

	_, ok := matcher.UnpairIf("A", "C")
	assert.False(t, ok, "stale partner must not destroy the current pair")
	p, _ := matcher.Partner("A")
	assert.Equal(t, models.UserID("B"), p)

	_, ok = matcher.UnpairIf("A", "B")
	assert.True(t, ok)
	assert.Equal(t, 0, matcher.ActiveChatCount())
}

// TestMatcher_ConcurrentInvariants hammers the matcher from many goroutines and then
// checks symmetry and queue/registry disjointness.
func TestMatcher_ConcurrentInvariants(t *testing.T) {
	const users = 200
	ids := make([]models.UserID, users)
	for i := range ids {
		ids[i] = models.UserID(fmt.Sprintf("u%d", i))
	}
	matcher, store := newTestMatcher(ids...)

	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id models.UserID) {
				defer wg.Done()
				_, _ = matcher.TryPair(id)
				if id[len(id)-1]%3 == 0 {
					matcher.End(id)
				}
			}(id)
		}
		wg.Wait()
	}

	snap := matcher.Snapshot()
	queued := make(map[models.UserID]bool)
	for _, id := range snap.Queue {
		assert.False(t, queued[id], "user %s queued twice", id)
		queued[id] = true
		assert.Equal(t, models.StateSearching, store.State(id))
	}
	for a, b := range snap.Partners {
		assert.Equal(t, a, snap.Partners[b], "registry must be symmetric")
		assert.NotEqual(t, a, b)
		assert.False(t, queued[a], "paired user %s also queued", a)
		assert.Equal(t, models.StateChatting, store.State(a))
	}
	assert.LessOrEqual(t, len(snap.Queue), 1, "two waiters would have been paired")
}
