package driver

import (
	"fmt"
	"sync"
)

// Factory constructs a Backend, probing whatever hardware/kernel state it
// needs. It returns an error (rather than panicking) when the backend
// can't claim the device, so Select can fall through to the next one.
type Factory func(driverName string) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{} // driver name -> factory; "" is the generic pipe fallback
	order     []string               // probe order, generic pipe first
)

// Register adds a factory for driverName ("i915", "radeon", "nouveau",
// or "" for a generic fallback that Select always tries first).
// backend/noop calls it from its init(); the vendor and pipe backends do
// not register themselves, because gralloc's device-open path opens them
// directly.
func Register(driverName string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[driverName]; !exists {
		order = append(order, driverName)
	}
	factories[driverName] = f
}

// Select probes backends in registration order, generic pipe first, then
// name-specific backends (Intel for "i915", Radeon for "radeon", Nouveau
// for "nouveau"), returning the first that claims the device.
func Select(kernelDriverName string) (Backend, error) {
	mu.RLock()
	snapshot := append([]string(nil), order...)
	fs := make(map[string]Factory, len(factories))
	for k, v := range factories {
		fs[k] = v
	}
	mu.RUnlock()

	var lastErr error
	for _, name := range snapshot {
		if name != "" && name != kernelDriverName {
			continue
		}
		b, err := fs[name](kernelDriverName)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendNotFound, kernelDriverName, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, kernelDriverName)
}
