package orderbook

import "econia/domain/errs"

// AccessKey is a 1-based slot index into a Records table. The zero key
// refers to no slot.
type AccessKey uint64

// Records is a slot table of orders with a free list of released keys.
// Pointers returned by GetMut stay valid until the next Allocate.
type Records struct {
	slots []Order
	free  []AccessKey
	live  int
}

// NewRecords creates an empty table with room for capacity orders.
func NewRecords(capacity int) *Records {
	return &Records{slots: make([]Order, 0, capacity)}
}

// Len returns the number of live records.
func (r *Records) Len() int { return r.live }

// Allocate returns a key for a fresh empty slot, reusing released keys first.
func (r *Records) Allocate() (AccessKey, error) {
	if n := len(r.free); n > 0 {
		key := r.free[n-1]
		slot := &r.slots[key-1]
		if slot.live {
			return 0, errs.New(errs.ErrInvariant, "free list returned live slot %d", key)
		}
		r.free = r.free[:n-1]
		*slot = Order{AccessKey: key, live: true}
		r.live++
		return key, nil
	}
	r.slots = append(r.slots, Order{})
	key := AccessKey(len(r.slots))
	r.slots[key-1] = Order{AccessKey: key, live: true}
	r.live++
	return key, nil
}

// Get returns a copy of the order at key.
func (r *Records) Get(key AccessKey) (Order, bool) {
	o := r.lookup(key)
	if o == nil {
		return Order{}, false
	}
	return *o, true
}

// GetMut returns the live order at key for in-place mutation.
func (r *Records) GetMut(key AccessKey) (*Order, error) {
	o := r.lookup(key)
	if o == nil {
		return nil, errs.New(errs.ErrInvariant, "no live record at access key %d", key)
	}
	return o, nil
}

// Free releases key. Freeing a key that is not live is an invariant error.
func (r *Records) Free(key AccessKey) error {
	o := r.lookup(key)
	if o == nil {
		return errs.New(errs.ErrInvariant, "double free of access key %d", key)
	}
	*o = Order{AccessKey: key}
	r.free = append(r.free, key)
	r.live--
	return nil
}

func (r *Records) lookup(key AccessKey) *Order {
	if key == 0 || uint64(key) > uint64(len(r.slots)) {
		return nil
	}
	o := &r.slots[key-1]
	if !o.live {
		return nil
	}
	return o
}
