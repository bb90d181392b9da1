package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/medeiros-dev/reservation-notifier/configs"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/offline"
)

// StoreFactory builds an offline store backend from configuration.
type StoreFactory func(cfg *configs.Config) (offline.Store, error)

var (
	storeRegistry = make(map[string]StoreFactory)
	registryMutex sync.RWMutex
)

// RegisterStoreFactory registers an offline store driver.
// Drivers call it from their init() block.
func RegisterStoreFactory(name string, factory StoreFactory) error {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := storeRegistry[name]; exists {
		return fmt.Errorf("offline store driver already registered: %s", name)
	}
	storeRegistry[name] = factory
	return nil
}

// GetStoreFactory retrieves a driver by name.
func GetStoreFactory(name string) (StoreFactory, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	factory, exists := storeRegistry[name]
	if !exists {
		return nil, fmt.Errorf("no offline store driver registered for name: %s", name)
	}
	return factory, nil
}

// Drivers lists registered driver names in order.
func Drivers() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(storeRegistry))
	for name := range storeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStore builds the store selected by cfg.OfflineStoreDriver.
func NewStore(cfg *configs.Config) (offline.Store, error) {
	factory, err := GetStoreFactory(cfg.OfflineStoreDriver)
	if err != nil {
		return nil, err
	}
	return factory(cfg)
}
