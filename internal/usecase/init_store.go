package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/taskcal/internal/domain"
)

// InitStoreInput contains the parameters for initializing the store.
type InitStoreInput struct{}

// InitStoreOutput reports whether the store already existed.
type InitStoreOutput struct {
	AlreadyInitialized bool
}

// InitStore is the use case for creating the store file or schema.
type InitStore struct {
	initializer domain.StoreInitializer
	logger      domain.Logger
}

// NewInitStore creates a new InitStore use case.
func NewInitStore(initializer domain.StoreInitializer, logger domain.Logger) *InitStore {
	return &InitStore{
		initializer: initializer,
		logger:      logger,
	}
}

// Execute initializes the store. It is idempotent.
func (uc *InitStore) Execute(ctx context.Context, _ InitStoreInput) (*InitStoreOutput, error) {
	ok, err := uc.initializer.IsInitialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("check store: %w", err)
	}
	if ok {
		return &InitStoreOutput{AlreadyInitialized: true}, nil
	}
	if err := uc.initializer.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	logf(uc.logger, domain.Logger.Info, "", "init", "store initialized")
	return &InitStoreOutput{}, nil
}
