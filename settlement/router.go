package settlement

import (
	"context"
	"fmt"
	"strings"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/errors"
	"finco/settlement/models"

	log "github.com/sirupsen/logrus"
)

// RouteSelector decides which venue serves a pair. The restricted venue
// serves only distinct pairs from its asset set; everything else goes to
// the aggregator.
type RouteSelector struct {
	restricted    svm.Venue
	aggregator    svm.Venue
	restrictedSet map[string]struct{}
}

// NewRouteSelector accepts a nil restricted venue, in which case every
// pair is routed to the aggregator.
func NewRouteSelector(restrictedSymbols []string, restricted, aggregator svm.Venue) *RouteSelector {
	set := make(map[string]struct{}, len(restrictedSymbols))
	for _, s := range restrictedSymbols {
		set[strings.ToUpper(s)] = struct{}{}
	}
	return &RouteSelector{restricted: restricted, aggregator: aggregator, restrictedSet: set}
}

func (r *RouteSelector) isRestricted(symbol string) bool {
	_, ok := r.restrictedSet[strings.ToUpper(symbol)]
	return ok
}

func (r *RouteSelector) Select(from, to spl.Asset) models.Route {
	if r.restricted != nil && from.Symbol != to.Symbol && r.isRestricted(from.Symbol) && r.isRestricted(to.Symbol) {
		return models.RestrictedRoute
	}
	return models.AggregatorRoute
}

// Candidates lists venues in the order they should be tried.
func (r *RouteSelector) Candidates(from, to spl.Asset) []svm.Venue {
	if r.Select(from, to) == models.RestrictedRoute {
		return []svm.Venue{r.restricted, r.aggregator}
	}
	return []svm.Venue{r.aggregator}
}

// TryVenues runs attempt against venues in order and returns the first
// success. A failure moves on to the next venue only when it comes from the
// restricted venue, is fallback eligible, and no fallback happened yet;
// otherwise the failure is returned as is.
func TryVenues[R any](ctx context.Context, venues []svm.Venue, attempt func(context.Context, svm.Venue) (R, error), onFallback func(from, to svm.Venue, cause error)) (R, error) {
	var zero R
	if len(venues) == 0 {
		return zero, errors.Internal(errors.ClientError, fmt.Errorf("no venue configured"))
	}
	for i, venue := range venues {
		result, err := attempt(ctx, venue)
		if err == nil {
			return result, nil
		}
		last := i == len(venues)-1
		if last || i > 0 || venue.Route() != models.RestrictedRoute || !errors.IsFallbackEligible(err) {
			return zero, err
		}
		next := venues[i+1]
		log.WithFields(log.Fields{
			"from": venue.Route(),
			"to":   next.Route(),
		}).WithError(err).Warn("venue failed, falling back")
		if onFallback != nil {
			onFallback(venue, next, err)
		}
	}
	return zero, errors.Internal(errors.ClientError, fmt.Errorf("no venue succeeded"))
}
