// Package credstore persists the session's token pair between console runs.
package credstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/model"
)

// Store is durable key-value persistence for the credential and an optional cached
// identity. Implementations never recover from failures; they return KindStorage errors.
type Store interface {
	// Save atomically replaces both tokens. A failed Save leaves the prior pair.
	Save(ctx context.Context, cred model.Credential) error
	// Load returns the persisted credential, or nil when none is stored.
	Load(ctx context.Context) (*model.Credential, error)
	// Clear removes both tokens and any cached identity. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
	// SaveIdentity caches the identity next to the current credential.
	SaveIdentity(ctx context.Context, identity model.Identity) error
	// LoadIdentity returns the cached identity, or nil.
	LoadIdentity(ctx context.Context) (*model.Identity, error)
}

// New builds the store selected by cfg.CredentialStore.
// The returned close func releases any connection held by the store.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.CredentialStore {
	case config.StoreFile, "":
		return NewFileStore(cfg.CredentialPath), noop, nil
	case config.StoreMemory:
		return NewMemoryStore(), noop, nil
	case config.StoreRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.KindStorage, "credential storage unavailable", err)
		}
		return NewRedisStore(rdb, config.CacheKey.CredentialKey(cfg.CredentialKey)), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
}

func storageErr(op string, err error) error {
	return apperr.Wrap(apperr.KindStorage, "credential storage failed", fmt.Errorf("%s: %w", op, err))
}

func incompleteErr() error {
	return apperr.New(apperr.KindStorage, "refusing to store an incomplete credential")
}
