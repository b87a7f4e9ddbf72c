package orders

import (
	"github.com/tradai/core/internal/errs"
	"github.com/tradai/core/internal/kv"
)

// Repository is the derived current-state store: one OrderDetail per order
// id, keyed directly by id in its own kv.Store.
type Repository struct {
	store *kv.Store
}

func NewRepository(store *kv.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Get(id string) (OrderDetail, error) {
	raw, ok, err := r.store.Get([]byte(id))
	if err != nil {
		return OrderDetail{}, err
	}
	if !ok {
		return OrderDetail{}, errs.ErrOrderNotFound
	}
	var detail OrderDetail
	if err := kv.Decode(raw, &detail); err != nil {
		return OrderDetail{}, err
	}
	return detail, nil
}

func (r *Repository) Put(detail OrderDetail) error {
	raw, err := kv.Encode(detail)
	if err != nil {
		return err
	}
	return r.store.Put([]byte(detail.ID), raw, true)
}
