package service

import (
	"strings"
	"sync"

	"sift_client/internal/domain/entity"
	"sift_client/internal/pkg/notify"
)

const tableSource = "accounts"

// accountTable is the in-memory account list keyed by lower-cased address.
// The synchronizer is the only writer.
type accountTable struct {
	mu       sync.RWMutex
	byKey    map[string]*entity.Account
	order    []string
	notifier *notify.Notifier
}

func newAccountTable(notifier *notify.Notifier) *accountTable {
	return &accountTable{byKey: make(map[string]*entity.Account), notifier: notifier}
}

func accountKey(address string) string {
	return strings.ToLower(address)
}

func (t *accountTable) get(address string) (*entity.Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.byKey[accountKey(address)]
	return a, ok
}

func (t *accountTable) list() []*entity.Account {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*entity.Account, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.byKey[k])
	}
	return out
}

func (t *accountTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// retain removes every account whose address is not in addresses and
// returns the removed addresses.
func (t *accountTable) retain(addresses []string) []string {
	keep := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		keep[accountKey(a)] = struct{}{}
	}

	t.mu.Lock()
	var removed []string
	order := t.order[:0]
	for _, k := range t.order {
		if _, ok := keep[k]; ok {
			order = append(order, k)
			continue
		}
		removed = append(removed, t.byKey[k].Address())
		delete(t.byKey, k)
	}
	t.order = order
	t.mu.Unlock()

	for _, a := range removed {
		t.notifier.Notify(tableSource, a, "Removed")
	}
	return removed
}

// add inserts a new account. It returns false if the address is already present.
func (t *accountTable) add(a *entity.Account) bool {
	k := accountKey(a.Address())
	t.mu.Lock()
	if _, ok := t.byKey[k]; ok {
		t.mu.Unlock()
		return false
	}
	t.byKey[k] = a
	t.order = append(t.order, k)
	t.mu.Unlock()

	t.notifier.Notify(tableSource, a.Address(), "Added")
	return true
}
