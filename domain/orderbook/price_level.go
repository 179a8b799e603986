package orderbook

import (
	"fmt"

	"econia/domain/errs"
)

// PriceLevel is a FIFO queue of orders at a single price. The queue links
// live in the order records, so a level only holds the end keys.
type PriceLevel struct {
	Price      uint64
	TotalSize  uint64
	OrderCount int

	head AccessKey
	tail AccessKey
}

// Head returns the access key of the oldest order at this level.
func (p *PriceLevel) Head() AccessKey { return p.head }

// Empty reports whether the level holds no orders.
func (p *PriceLevel) Empty() bool { return p.head == 0 }

func (p *PriceLevel) enqueue(r *Records, o *Order) error {
	if p.tail != 0 {
		tail, err := r.GetMut(p.tail)
		if err != nil {
			return err
		}
		tail.next = o.AccessKey
		o.prev = p.tail
	} else {
		p.head = o.AccessKey
	}
	p.tail = o.AccessKey
	o.next = 0
	p.TotalSize += o.Size
	p.OrderCount++
	return nil
}

func (p *PriceLevel) unlink(r *Records, o *Order) error {
	if o.prev != 0 {
		prev, err := r.GetMut(o.prev)
		if err != nil {
			return err
		}
		prev.next = o.next
	} else {
		if p.head != o.AccessKey {
			return errs.New(errs.ErrInvariant, "order %s is not head of level %d", o.ID, p.Price)
		}
		p.head = o.next
	}
	if o.next != 0 {
		next, err := r.GetMut(o.next)
		if err != nil {
			return err
		}
		next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	if p.TotalSize < o.Size || p.OrderCount == 0 {
		return errs.New(errs.ErrInvariant, "level %d aggregate below order %s", p.Price, o.ID)
	}
	p.TotalSize -= o.Size
	p.OrderCount--
	o.prev, o.next = 0, 0
	return nil
}

// String formats the level for logging.
func (p *PriceLevel) String() string {
	return fmt.Sprintf("PriceLevel{Price=%d, Orders=%d, TotalSize=%d}", p.Price, p.OrderCount, p.TotalSize)
}
