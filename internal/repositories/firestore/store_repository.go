package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/atelier-market/api/internal/domain"
	pfirestore "github.com/atelier-market/api/internal/platform/firestore"
)

const storesCollection = "stores"

// StoreRepository persists store documents in Firestore.
type StoreRepository struct {
	provider *pfirestore.Provider
	stores   *pfirestore.BaseRepository[domain.Store]
}

// NewStoreRepository constructs a Firestore backed store repository.
func NewStoreRepository(provider *pfirestore.Provider) (*StoreRepository, error) {
	if provider == nil {
		return nil, errors.New("store repository requires firestore provider")
	}
	stores := pfirestore.NewBaseRepository[domain.Store](provider, storesCollection)
	return &StoreRepository{provider: provider, stores: stores}, nil
}

// Insert creates the store document, failing when the ID already exists.
func (r *StoreRepository) Insert(ctx context.Context, store domain.Store) error {
	if r == nil || r.stores == nil {
		return errors.New("store repository not initialised")
	}
	if strings.TrimSpace(store.ID) == "" {
		return errors.New("store insert: id is required")
	}
	return r.stores.Create(ctx, store.ID, store)
}

// FindByID fetches a store by document ID.
func (r *StoreRepository) FindByID(ctx context.Context, storeID string) (domain.Store, error) {
	if r == nil || r.stores == nil {
		return domain.Store{}, errors.New("store repository not initialised")
	}
	doc, err := r.stores.Get(ctx, storeID)
	if err != nil {
		return domain.Store{}, err
	}
	store := doc.Data
	store.ID = doc.ID
	return store, nil
}

// ListByOwner returns all stores owned by the given user, newest first.
func (r *StoreRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error) {
	if r == nil || r.stores == nil {
		return nil, errors.New("store repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("store list: owner id is required")
	}

	docs, err := r.stores.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", ownerID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	stores := make([]domain.Store, 0, len(docs))
	for _, doc := range docs {
		store := doc.Data
		store.ID = doc.ID
		stores = append(stores, store)
	}
	return stores, nil
}

// Update overwrites the store document.
func (r *StoreRepository) Update(ctx context.Context, store domain.Store) error {
	if r == nil || r.stores == nil {
		return errors.New("store repository not initialised")
	}
	if strings.TrimSpace(store.ID) == "" {
		return errors.New("store update: id is required")
	}
	return r.stores.Set(ctx, store.ID, store)
}

// Delete removes the store document.
func (r *StoreRepository) Delete(ctx context.Context, storeID string) error {
	if r == nil || r.stores == nil {
		return errors.New("store repository not initialised")
	}
	return r.stores.Delete(ctx, storeID)
}
