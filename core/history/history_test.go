package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndListTurns(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	sessionID, err := store.StartSession(ctx, "scripted")
	require.NoError(t, err)

	base := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, store.RecordTurn(ctx, sessionID, Turn{ID: "t1", PromptID: "a", Outcome: "answered", Answer: "yes", Attempts: 1, Duration: 1500 * time.Millisecond, ResolvedAt: base}))
	require.NoError(t, store.RecordTurn(ctx, sessionID, Turn{ID: "t2", PromptID: "b", Outcome: "no_response", Answer: "[No response]", Attempts: 3, ResolvedAt: base.Add(time.Second)}))

	turns, err := store.Turns(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "a", turns[0].PromptID)
	require.Equal(t, 1500*time.Millisecond, turns[0].Duration)
	require.Equal(t, "[No response]", turns[1].Answer)
	require.Equal(t, 3, turns[1].Attempts)
	require.True(t, turns[1].ResolvedAt.Equal(base.Add(time.Second)))
}

func TestEndSessionKeepsFirstReason(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	sessionID, err := store.StartSession(ctx, "live")
	require.NoError(t, err)

	reason, err := store.EndReason(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, reason)

	require.NoError(t, store.EndSession(ctx, sessionID, "no_response"))
	require.NoError(t, store.EndSession(ctx, sessionID, "completed"))

	reason, err = store.EndReason(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, "no_response", reason)

	require.ErrorIs(t, store.EndSession(ctx, "missing", "x"), ErrUnknownSession)
	_, err = store.EndReason(ctx, "missing")
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestRecorderStoresSessionEvents(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	sessionID, err := store.StartSession(ctx, "scripted")
	require.NoError(t, err)

	record := store.Recorder(ctx, sessionID)
	record(events.NewTurnStarted("t1", "a"))
	record(events.NewTurnResolved("t1", "a", "unintelligible", "[Unintelligible]", 2, time.Second))
	record(events.NewSessionCompleted())

	turns, err := store.Turns(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "unintelligible", turns[0].Outcome)

	reason, err := store.EndReason(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, "completed", reason)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := Open(path)
	require.NoError(t, err)
	sessionID, err := first.StartSession(context.Background(), "scripted")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.EndReason(context.Background(), sessionID)
	require.NoError(t, err)
}
