package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/machikado-app/api/internal/platform/firestore"
	"github.com/machikado-app/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider
	users    *UserRepository
	shops    *ShopRepository
	events   *EventRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the repository registry on top of a shared provider.
// The health repository is optional.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}

	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build user repository: %w", err)
	}
	shops, err := NewShopRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build shop repository: %w", err)
	}
	events, err := NewEventRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build event repository: %w", err)
	}

	return &Registry{
		provider: provider,
		users:    users,
		shops:    shops,
		events:   events,
		health:   health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Shops returns the shop repository.
func (r *Registry) Shops() repositories.ShopRepository { return r.shops }

// Events returns the event repository.
func (r *Registry) Events() repositories.EventRepository { return r.events }

// Health returns the dependency health repository, which may be nil.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn within a Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("firestore registry: provider is required")
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}
