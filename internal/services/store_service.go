package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/repositories"
)

const (
	eventStoreCreate = "store.create"
	eventStoreUpdate = "store.update"
	eventStoreDelete = "store.delete"
)

var (
	// ErrStoreInvalidInput signals the caller provided invalid arguments.
	ErrStoreInvalidInput = errors.New("stores: invalid input")
	// ErrStoreNotFound indicates the store does not exist.
	ErrStoreNotFound = errors.New("stores: store not found")
	// ErrNotStoreOwner indicates the acting user does not own the store.
	ErrNotStoreOwner = errors.New("stores: user is not the store owner")
)

// StoreServiceDeps bundles the collaborators required to construct a store service.
type StoreServiceDeps struct {
	Stores      repositories.StoreRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type storeService struct {
	stores repositories.StoreRepository
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewStoreService wires dependencies into a concrete StoreService implementation.
func NewStoreService(deps StoreServiceDeps) (StoreService, error) {
	if deps.Stores == nil {
		return nil, errors.New("store service: store repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &storeService{
		stores: deps.Stores,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *storeService) CreateStore(ctx context.Context, actorID string, input StoreInput) (domain.Store, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.Store{}, fmt.Errorf("%w: actor id is required", ErrStoreInvalidInput)
	}
	if strings.TrimSpace(input.Name) == "" {
		return domain.Store{}, fmt.Errorf("%w: name is required", ErrStoreInvalidInput)
	}

	now := s.clock()
	store := domain.Store{
		ID:          "st_" + s.newID(),
		Name:        strings.TrimSpace(input.Name),
		OwnerID:     actorID,
		TmnCode:     strings.TrimSpace(input.TmnCode),
		HashSecret:  strings.TrimSpace(input.HashSecret),
		FrontendURL: strings.TrimSpace(input.FrontendURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.stores.Insert(ctx, store); err != nil {
		return domain.Store{}, err
	}

	s.logger(ctx, eventStoreCreate, map[string]any{"storeId": store.ID, "ownerId": actorID})
	return store, nil
}

func (s *storeService) GetStore(ctx context.Context, actorID, storeID string) (domain.Store, error) {
	return s.requireOwnedStore(ctx, actorID, storeID)
}

func (s *storeService) ListStores(ctx context.Context, actorID string) ([]domain.Store, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", ErrStoreInvalidInput)
	}
	return s.stores.ListByOwner(ctx, actorID)
}

func (s *storeService) UpdateStore(ctx context.Context, actorID, storeID string, input StoreInput) (domain.Store, error) {
	store, err := s.requireOwnedStore(ctx, actorID, storeID)
	if err != nil {
		return domain.Store{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return domain.Store{}, fmt.Errorf("%w: name is required", ErrStoreInvalidInput)
	}

	store.Name = strings.TrimSpace(input.Name)
	store.TmnCode = strings.TrimSpace(input.TmnCode)
	store.HashSecret = strings.TrimSpace(input.HashSecret)
	store.FrontendURL = strings.TrimSpace(input.FrontendURL)
	store.UpdatedAt = s.clock()

	if err := s.stores.Update(ctx, store); err != nil {
		return domain.Store{}, err
	}

	s.logger(ctx, eventStoreUpdate, map[string]any{"storeId": store.ID})
	return store, nil
}

func (s *storeService) DeleteStore(ctx context.Context, actorID, storeID string) error {
	store, err := s.requireOwnedStore(ctx, actorID, storeID)
	if err != nil {
		return err
	}
	if err := s.stores.Delete(ctx, store.ID); err != nil {
		return err
	}
	s.logger(ctx, eventStoreDelete, map[string]any{"storeId": store.ID})
	return nil
}

func (s *storeService) requireOwnedStore(ctx context.Context, actorID, storeID string) (domain.Store, error) {
	actorID = strings.TrimSpace(actorID)
	storeID = strings.TrimSpace(storeID)
	if actorID == "" || storeID == "" {
		return domain.Store{}, fmt.Errorf("%w: actor id and store id are required", ErrStoreInvalidInput)
	}

	store, err := s.stores.FindByID(ctx, storeID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Store{}, fmt.Errorf("%w: %s", ErrStoreNotFound, storeID)
		}
		return domain.Store{}, err
	}
	if store.OwnerID != actorID {
		return domain.Store{}, fmt.Errorf("%w: %s", ErrNotStoreOwner, storeID)
	}
	return store, nil
}
