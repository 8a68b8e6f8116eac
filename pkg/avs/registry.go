package avs

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ClientFactory builds a client for an access token in a region.
type ClientFactory func(token string, region Region) (*Client, error)

type registryKey struct {
	token  string
	region Region
}

// Registry hands out one client per (token, region). Closed clients are
// rebuilt on the next Get.
type Registry struct {
	factory ClientFactory
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[registryKey]*Client
}

// NewRegistry creates a registry.
func NewRegistry(factory ClientFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factory: factory,
		logger:  logger,
		clients: make(map[registryKey]*Client),
	}
}

// Get returns the client for (token, region), creating it when needed.
func (r *Registry) Get(token string, region Region) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &Error{Kind: KindAuth, Op: "registry", Err: errors.New("access token is empty")}
	}
	key := registryKey{token: token, region: ParseRegion(string(region))}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[key]; ok {
		if !client.Closed() {
			return client, nil
		}
		r.logger.Debug("avs client rebuilt", zap.String("region", string(key.region)))
		delete(r.clients, key)
	}
	client, err := r.factory(key.token, key.region)
	if err != nil {
		return nil, err
	}
	r.clients[key] = client
	return client, nil
}

// Close closes every client.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, client := range r.clients {
		client.Close()
		delete(r.clients, key)
	}
}
