// internal/marketplace/directory.go
package marketplace

import (
	"context"
	"sync"

	"nftmarket/internal/account"
)

// Directory is a fixed set of registries keyed by address.
type Directory struct {
	mu         sync.RWMutex
	registries map[account.Address]AssetRegistry
}

func NewDirectory(registries ...AssetRegistry) *Directory {
	d := &Directory{registries: make(map[account.Address]AssetRegistry)}
	for _, r := range registries {
		d.Add(r)
	}
	return d
}

func (d *Directory) Add(r AssetRegistry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registries[r.Address()] = r
}

func (d *Directory) Lookup(ctx context.Context, nft account.Address) (AssetRegistry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.registries[nft]
	if !ok {
		return nil, ErrUnknownRegistry
	}
	return r, nil
}
