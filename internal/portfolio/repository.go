package portfolio

import (
	"strings"

	"github.com/tradai/core/internal/kv"
)

// Repository persists positions, the open-position index, locks and
// portfolio scalars (value/pnl) in one kv.Store, key-prefixed per
// logical table: positions, open_pos_idx, locks, vars.
type Repository struct {
	store *kv.Store
}

func NewRepository(store *kv.Store) *Repository {
	return &Repository{store: store}
}

const (
	prefixPosition = "pos:"
	prefixOpenIdx  = "openidx:"
	prefixLock     = "lock:"
	keyVars        = "vars"
)

func lockKey(k Key) string { return prefixLock + k.Venue + ":" + k.Pair }

// Vars is the persisted scalar state: current value and realized pnl.
type Vars struct {
	Value float64 `json:"value"`
	PnL   float64 `json:"pnl"`
}

func (r *Repository) OpenPosition(pos Position) error { return r.putPosition(pos, true) }
func (r *Repository) ClosePosition(pos Position) error {
	if err := r.putPosition(pos, false); err != nil {
		return err
	}
	return r.store.Delete([]byte(prefixOpenIdx+pos.ID), true)
}

func (r *Repository) putPosition(pos Position, isOpen bool) error {
	raw, err := kv.Encode(pos)
	if err != nil {
		return err
	}
	if err := r.store.Put([]byte(prefixPosition+pos.ID), raw, true); err != nil {
		return err
	}
	if isOpen {
		return r.store.Put([]byte(prefixOpenIdx+pos.ID), []byte(pos.ID), true)
	}
	return nil
}

func (r *Repository) GetPosition(id string) (Position, bool, error) {
	raw, ok, err := r.store.Get([]byte(prefixPosition + id))
	if err != nil || !ok {
		return Position{}, false, err
	}
	var pos Position
	if err := kv.Decode(raw, &pos); err != nil {
		return Position{}, false, err
	}
	return pos, true, nil
}

func (r *Repository) AllPositions() ([]Position, error) {
	kvs, err := r.store.ScanPrefix([]byte(prefixPosition))
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(kvs))
	for _, e := range kvs {
		var pos Position
		if err := kv.Decode(e.Value, &pos); err != nil {
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}

func (r *Repository) DeletePosition(id string) error {
	if err := r.store.Delete([]byte(prefixPosition+id), true); err != nil {
		return err
	}
	return r.store.Delete([]byte(prefixOpenIdx+id), true)
}

func (r *Repository) SetLock(key Key, lock Lock) error {
	raw, err := kv.Encode(lock)
	if err != nil {
		return err
	}
	return r.store.Put([]byte(lockKey(key)), raw, true)
}

func (r *Repository) ReleaseLock(key Key) error {
	return r.store.Delete([]byte(lockKey(key)), true)
}

func (r *Repository) AllLocks() (map[Key]Lock, error) {
	kvs, err := r.store.ScanPrefix([]byte(prefixLock))
	if err != nil {
		return nil, err
	}
	out := make(map[Key]Lock, len(kvs))
	for _, e := range kvs {
		var lock Lock
		if err := kv.Decode(e.Value, &lock); err != nil {
			continue
		}
		raw := string(e.Key)[len(prefixLock):]
		idx := strings.IndexByte(raw, ':')
		if idx < 0 {
			continue
		}
		out[Key{Venue: raw[:idx], Pair: raw[idx+1:]}] = lock
	}
	return out, nil
}

func (r *Repository) UpdateVars(vars Vars) error {
	raw, err := kv.Encode(vars)
	if err != nil {
		return err
	}
	return r.store.Put([]byte(keyVars), raw, true)
}

func (r *Repository) LoadVars() (Vars, bool, error) {
	raw, ok, err := r.store.Get([]byte(keyVars))
	if err != nil || !ok {
		return Vars{}, ok, err
	}
	var vars Vars
	if err := kv.Decode(raw, &vars); err != nil {
		return Vars{}, false, err
	}
	return vars, true, nil
}
