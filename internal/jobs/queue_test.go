package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePushNext(t *testing.T) {
	t.Parallel()

	q := NewCandidateQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "abc-12345"))
	require.NoError(t, q.Push(ctx, "def-67890"))

	id, ok, err := q.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CandidateID("abc-12345"), id)

	id, ok, err = q.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CandidateID("def-67890"), id)
}

func TestQueueCloseDrains(t *testing.T) {
	t.Parallel()

	q := NewCandidateQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "abc-12345"))
	q.Close()

	// The buffered candidate is still delivered after close.
	id, ok, err := q.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CandidateID("abc-12345"), id)

	// Then consumers observe the close.
	_, ok, err = q.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueuePushAfterCloseErrors(t *testing.T) {
	t.Parallel()

	q := NewCandidateQueue(1)
	q.Close()
	q.Close() // idempotent

	err := q.Push(context.Background(), "abc-12345")
	require.Error(t, err)
}

func TestQueueCloseDoesNotPanicUnderBlockedPush(t *testing.T) {
	t.Parallel()

	q := NewCandidateQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, "abc-12345"))

	// This push blocks on the full buffer while Close races it.
	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(ctx, "def-67890") }()
	closed := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Close()
		close(closed)
	}()

	id, ok, err := q.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CandidateID("abc-12345"), id)

	// The blocked push either landed before the close or was refused; it
	// never panics on a closed channel.
	if err := <-pushed; err == nil {
		id, ok, err = q.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, CandidateID("def-67890"), id)
	}
	<-closed

	_, ok, err = q.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueueNextHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewCandidateQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := q.Next(ctx)
	require.Error(t, err)
}

func TestCandidateIDValid(t *testing.T) {
	t.Parallel()

	valid := []CandidateID{"abcd1234", "ABC-def-123", "12345678901234567890"}
	for _, id := range valid {
		require.True(t, id.Valid(), "expected %q to be valid", id)
	}

	invalid := []CandidateID{"", "short", "has space 1234", "bad/slash-123", CandidateID(make([]byte, 70))}
	for _, id := range invalid {
		require.False(t, id.Valid(), "expected %q to be invalid", id)
	}
}
