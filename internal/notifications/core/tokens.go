package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ordernotify/internal/types"
)

// DefaultFanoutLimit bounds concurrent store reads and push sends when no
// limit is configured.
const DefaultFanoutLimit = 16

// TokenLookup resolves farmers to their registered device tokens.
type TokenLookup struct {
	store   types.DocumentStore
	farmers string
	limit   int
	logger  types.Logger
}

// NewTokenLookup creates a lookup reading the named farmers collection with
// at most limit reads in flight.
func NewTokenLookup(store types.DocumentStore, farmersCollection string, limit int, logger types.Logger) *TokenLookup {
	if limit <= 0 {
		limit = DefaultFanoutLimit
	}
	return &TokenLookup{
		store:   store,
		farmers: farmersCollection,
		limit:   limit,
		logger:  logger,
	}
}

// Lookup returns the farmer's device token. ok is false when the farmer has
// no record or no token.
func (l *TokenLookup) Lookup(ctx context.Context, farmerID string) (string, bool, error) {
	doc, found, err := l.store.Get(ctx, l.farmers, farmerID)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	profile := types.FarmerProfile{ID: farmerID, FCMToken: stringField(doc, types.FieldFCMToken)}
	if profile.FCMToken == "" {
		return "", false, nil
	}
	return profile.FCMToken, true, nil
}

// LookupAll looks up every farmer concurrently. The result slice is parallel
// to farmerIDs. A failed read is kept on its own result and treated as
// unreachable; it never cancels the other lookups.
func (l *TokenLookup) LookupAll(ctx context.Context, farmerIDs []string) []TokenResult {
	results := make([]TokenResult, len(farmerIDs))

	var g errgroup.Group
	g.SetLimit(l.limit)

	for i, id := range farmerIDs {
		g.Go(func() error {
			token, ok, err := l.Lookup(ctx, id)
			results[i] = TokenResult{FarmerID: id, Token: token, Found: ok, Err: err}

			switch {
			case err != nil:
				l.logger.Warn("farmer token lookup failed",
					"farmer_id", id,
					"error", err.Error(),
				)
			case !ok:
				l.logger.Info("farmer has no registered device, skipping",
					"farmer_id", id,
					"code", string(types.ErrCodeRecipientUnreachable),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
