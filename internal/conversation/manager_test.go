package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

func newManager(t *testing.T, depth int) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewManager(client, time.Hour, depth, logger.NewTestLogger(t))
}

func turn(intent models.IntentKind, filters models.QueryFilters, productIDs ...string) models.Turn {
	return models.Turn{
		QueryID:    "q1",
		UserInput:  "input",
		Intent:     models.Intent{Kind: intent, Confidence: 0.9},
		Filters:    filters,
		ProductIDs: productIDs,
		Timestamp:  time.Now().UTC(),
	}
}

func TestAppendTurnIsAppendOnly(t *testing.T) {
	m := newManager(t, 10)
	ctx := context.Background()

	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentSearch, models.QueryFilters{Category: "shoes"})))
	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentCompare, models.QueryFilters{Brand: "nike"})))

	state, err := m.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.Turns, 2)
	assert.Equal(t, models.IntentSearch, state.Turns[0].Intent.Kind)
	assert.Equal(t, models.IntentCompare, state.Turns[1].Intent.Kind)
	assert.NotEmpty(t, state.Turns[0].TurnID)
	assert.False(t, state.UpdatedAt.Before(state.CreatedAt))
}

func TestContextFoldsFiltersMostRecentWins(t *testing.T) {
	m := newManager(t, 10)
	ctx := context.Background()

	max1 := 200.0
	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentSearch, models.QueryFilters{Category: "shoes", PriceMax: &max1})))
	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentSearch, models.QueryFilters{Color: "white"})))
	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentCompare, models.QueryFilters{Category: "headphones"}, "prod-1", "prod-2")))

	folded, err := m.Context(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, "headphones", folded.Filters.Category)
	assert.Equal(t, "white", folded.Filters.Color)
	if assert.NotNil(t, folded.Filters.PriceMax) {
		assert.InDelta(t, 200, *folded.Filters.PriceMax, 1e-9)
	}
	assert.Equal(t, models.IntentCompare, folded.PriorIntent)
	assert.Equal(t, []string{"prod-1", "prod-2"}, folded.LastProductIDs)
	assert.Equal(t, 3, folded.TurnCount)
}

func TestContextHonorsHistoryDepth(t *testing.T) {
	m := newManager(t, 2)
	ctx := context.Background()

	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentSearch, models.QueryFilters{Brand: "sony"})))
	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentSearch, models.QueryFilters{Category: "tv"})))
	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentSearch, models.QueryFilters{Color: "black"})))

	folded, err := m.Context(ctx, "s1")
	require.NoError(t, err)

	// The sony turn fell outside the 2-turn window.
	assert.Empty(t, folded.Filters.Brand)
	assert.Equal(t, "tv", folded.Filters.Category)
	assert.Equal(t, "black", folded.Filters.Color)
}

func TestContextEmptySession(t *testing.T) {
	m := newManager(t, 10)

	folded, err := m.Context(context.Background(), "unseen")
	require.NoError(t, err)
	assert.True(t, folded.Filters.IsEmpty())
	assert.Empty(t, folded.PriorIntent)
	assert.Zero(t, folded.TurnCount)
}

func TestResetDropsStateAndIssuesNewSession(t *testing.T) {
	m := newManager(t, 10)
	ctx := context.Background()

	require.NoError(t, m.AppendTurn(ctx, "s1", turn(models.IntentSearch, models.QueryFilters{Category: "shoes"})))

	fresh, err := m.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh)
	assert.NotEqual(t, "s1", fresh)

	state, err := m.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.Turns)
}

func TestConcurrentAppendsSameSessionAllLand(t *testing.T) {
	m := newManager(t, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tn := turn(models.IntentSearch, models.QueryFilters{})
			tn.QueryID = fmt.Sprintf("q%d", n)
			assert.NoError(t, m.AppendTurn(ctx, "shared", tn))
		}(i)
	}
	wg.Wait()

	state, err := m.Snapshot(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, state.Turns, 20)
}
