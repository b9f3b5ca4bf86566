package chain

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Clients lazily builds and caches one adapter per pair from the catalog.
type Clients struct {
	catalog   Service
	factories map[Family]ClientFactory

	mu      sync.Mutex
	clients map[Pair]Client
}

func NewClients(catalog Service, factories map[Family]ClientFactory) *Clients {
	return &Clients{
		catalog:   catalog,
		factories: factories,
		clients:   make(map[Pair]Client),
	}
}

// Get returns the adapter for pair, dialing it on first use. The catalog lookup and the
// dial run unlocked, so a slow pair never holds up the others.
func (c *Clients) Get(ctx context.Context, pair Pair) (Client, error) {
	if client, ok := c.cached(pair); ok {
		return client, nil
	}

	cfg, err := c.catalog.GetChain(ctx, pair)
	if err != nil {
		return nil, err
	}

	factory, ok := c.factories[cfg.Family]
	if !ok {
		return nil, errors.Errorf("no client factory for family %q", cfg.Family)
	}

	client, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create client for %s", pair)
	}

	c.mu.Lock()
	if existing, ok := c.clients[pair]; ok {
		c.mu.Unlock()
		// lost the race against a concurrent Get
		closeClient(pair, client)
		return existing, nil
	}
	c.clients[pair] = client
	c.mu.Unlock()

	log.Info().Str("pair", pair.String()).Str("family", string(cfg.Family)).Msg("Chain client created")

	return client, nil
}

func (c *Clients) cached(pair Pair) (Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[pair]
	return client, ok
}

// Set registers a prebuilt client, replacing any cached one.
func (c *Clients) Set(pair Pair, client Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clients[pair] = client
}

// Close closes every cached client that holds connections.
func (c *Clients) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for pair, client := range c.clients {
		closeClient(pair, client)
		delete(c.clients, pair)
	}
}

func closeClient(pair Pair, client Client) {
	closer, ok := client.(io.Closer)
	if !ok {
		return
	}

	if err := closer.Close(); err != nil {
		log.Warn().Err(err).Str("pair", pair.String()).Msg("Failed to close chain client")
	}
}
