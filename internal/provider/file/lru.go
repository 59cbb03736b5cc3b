package file

import (
	"container/list"
	"sync"

	"github.com/bindleproject/bindle/internal/invoice"
)

// defaultLRUSize is the default bound for the invoice LRU cache, per
// SPEC_FULL.md §4.6.
const defaultLRUSize = 50

// invoiceLRU is a small bounded LRU cache of deserialized invoices, keyed by
// canonical name. No LRU library is present in any example repo, so this is
// hand-rolled (see DESIGN.md stdlib justification) using container/list,
// the same approach the standard library's own documentation recommends for
// an LRU built from list+map.
type invoiceLRU struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	key string
	inv invoice.Invoice
}

func newInvoiceLRU(capacity int) *invoiceLRU {
	if capacity <= 0 {
		capacity = defaultLRUSize
	}
	return &invoiceLRU{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *invoiceLRU) get(key string) (invoice.Invoice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return invoice.Invoice{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).inv, true
}

func (c *invoiceLRU) put(key string, inv invoice.Invoice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).inv = inv
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key, inv: inv})
	c.items[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}

func (c *invoiceLRU) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}
