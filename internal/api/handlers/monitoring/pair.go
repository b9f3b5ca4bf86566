package monitoring

import (
	"context"
	"strings"

	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/wallet/chain"
)

// knownPair normalizes the pair of a request body and makes sure the catalog has it.
func knownPair(ctx context.Context, s *api.Server, blockchain, network string) (chain.Pair, error) {
	pair := chain.NewPair(strings.ToLower(strings.TrimSpace(blockchain)), strings.ToLower(strings.TrimSpace(network)))

	if _, err := s.Catalog.GetChain(ctx, pair); err != nil {
		return pair, api.HTTPError(err)
	}

	return pair, nil
}
