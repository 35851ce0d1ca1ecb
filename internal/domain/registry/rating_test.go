package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingBuffer_SubmitUpdatesInPlace(t *testing.T) {
	var b RatingBuffer
	require.NoError(t, b.Submit("alice", 3))
	require.NoError(t, b.Submit("bob", 5))
	require.NoError(t, b.Submit("alice", 4))

	require.Len(t, b.Entries, 2)
	assert.Equal(t, "alice", b.Entries[0].User)
	assert.Equal(t, 4, b.Entries[0].Rating)
	assert.Equal(t, "bob", b.Entries[1].User)
}

func TestRatingBuffer_SubmitRejectsOutOfRange(t *testing.T) {
	var b RatingBuffer
	require.Error(t, b.Submit("alice", 0))
	require.Error(t, b.Submit("alice", 6))
	assert.Empty(t, b.Entries)
}

func TestRatingBuffer_RotationEvictsOldest(t *testing.T) {
	var b RatingBuffer
	for i := 0; i < 101; i++ {
		user := userName(i)
		rating := 5
		if i == 100 {
			rating = 1
		}
		require.NoError(t, b.Submit(user, rating))
	}

	require.Len(t, b.Entries, 100)
	for _, e := range b.Entries {
		assert.NotEqual(t, userName(0), e.User, "oldest user should have been evicted")
	}

	avg, entries := b.Summary()
	require.Len(t, entries, 100)
	assert.InDelta(t, (99.0*5+1)/100.0, avg, 0.0001)
}

func TestRatingBuffer_SummaryEmpty(t *testing.T) {
	var b RatingBuffer
	avg, entries := b.Summary()
	assert.Equal(t, 0.0, avg)
	assert.Nil(t, entries)
}

func userName(i int) string {
	return "user-" + string(rune('a'+i%26)) + string(rune('0'+i/26%10))
}
