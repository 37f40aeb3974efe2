package settlement

import (
	"context"
	"testing"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	allowed := map[State][]State{
		StateQuoted:    {StatePrepared},
		StatePrepared:  {StateProposed, StateFailed, StateExpired},
		StateProposed:  {StateExecuting, StateFailed, StateExpired},
		StateExecuting: {StateFinalized, StateFailed},
	}
	all := []State{StateQuoted, StatePrepared, StateProposed, StateExecuting, StateFinalized, StateFailed, StateExpired}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	next, err := StatePrepared.Transition(StateProposed)
	require.NoError(t, err)
	assert.Equal(t, StateProposed, next)

	_, err = StateFinalized.Transition(StateExecuting)
	assert.Equal(t, errors.CodeInvalidStateTransition, errors.CodeOf(err))
}

func TestRouteSelection(t *testing.T) {
	usdc := spl.Asset{Symbol: "USDC", Mint: solana.NewWallet().PublicKey(), Decimals: 6}
	usdt := spl.Asset{Symbol: "USDT", Mint: solana.NewWallet().PublicKey(), Decimals: 6}
	sol := spl.Asset{Symbol: "SOL", Mint: solana.SolMint, Decimals: 9}
	restricted := &fakeVenue{route: models.RestrictedRoute, supports: true}
	aggregator := &fakeVenue{route: models.AggregatorRoute, supports: true}

	r := NewRouteSelector([]string{"usdc", "usdt"}, restricted, aggregator)
	assert.Equal(t, models.RestrictedRoute, r.Select(usdc, usdt))
	assert.Equal(t, models.RestrictedRoute, r.Select(usdt, usdc))
	assert.Equal(t, models.AggregatorRoute, r.Select(usdc, sol))
	assert.Equal(t, models.AggregatorRoute, r.Select(usdc, usdc))
	assert.Len(t, r.Candidates(usdc, usdt), 2)
	assert.Len(t, r.Candidates(sol, usdt), 1)

	unconfigured := NewRouteSelector([]string{"USDC", "USDT"}, nil, aggregator)
	assert.Equal(t, models.AggregatorRoute, unconfigured.Select(usdc, usdt))
}

func TestTryVenuesFallsBackAtMostOnce(t *testing.T) {
	restricted := &fakeVenue{route: models.RestrictedRoute}
	aggregator := &fakeVenue{route: models.AggregatorRoute}
	ctx := context.Background()

	var fallbacks int
	onFallback := func(from, to svm.Venue, _ error) { fallbacks++ }

	var tried []models.Route
	got, err := TryVenues(ctx, []svm.Venue{restricted, aggregator}, func(_ context.Context, v svm.Venue) (string, error) {
		tried = append(tried, v.Route())
		if v.Route() == models.RestrictedRoute {
			return "", errors.UnsupportedVenuePair("restricted", "USDC", "USDT", nil)
		}
		return "ok", nil
	}, onFallback)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []models.Route{models.RestrictedRoute, models.AggregatorRoute}, tried)
	assert.Equal(t, 1, fallbacks)

	tried = nil
	_, err = TryVenues(ctx, []svm.Venue{aggregator, restricted}, func(_ context.Context, v svm.Venue) (string, error) {
		tried = append(tried, v.Route())
		return "", errors.VenueServiceError(string(v.Route()), 500, nil)
	}, onFallback)
	assert.Equal(t, errors.CodeVenueServiceError, errors.CodeOf(err))
	assert.Equal(t, []models.Route{models.AggregatorRoute}, tried, "only the restricted venue falls back")

	_, err = TryVenues[string](ctx, nil, nil, nil)
	assert.Error(t, err)
}
