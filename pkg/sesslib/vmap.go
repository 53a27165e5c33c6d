package sesslib

import (
	"sync"
)

// VMap is a thread-safe generic map guarded by a read-write mutex.
// The registry uses it to hold the session id to jar mapping.
type VMap[kT comparable, vT any] struct {
	kv map[kT]vT
	mu sync.RWMutex
}

// NewVMap creates a new empty VMap with an initialized internal map.
func NewVMap[kT comparable, vT any]() VMap[kT, vT] {
	return VMap[kT, vT]{
		kv: make(map[kT]vT),
	}
}

// Get retrieves the value for key with read lock protection.
func (vm *VMap[kT, vT]) Get(key kT) (val vT, ok bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	val, ok = vm.kv[key]
	return
}

// Set stores a value for key with write lock protection.
func (vm *VMap[kT, vT]) Set(key kT, val vT) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.kv[key] = val
}

// GetOrSet returns the value for key, creating it with mk under the
// write lock if absent. The second return value reports whether a new
// entry was created. mk runs at most once per created entry and must
// not call back into the map.
func (vm *VMap[kT, vT]) GetOrSet(key kT, mk func() vT) (val vT, created bool) {
	vm.mu.RLock()
	val, ok := vm.kv[key]
	vm.mu.RUnlock()
	if ok {
		return val, false
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if val, ok = vm.kv[key]; ok {
		return val, false
	}
	val = mk()
	vm.kv[key] = val
	return val, true
}

// Has reports whether key is present.
func (vm *VMap[kT, vT]) Has(key kT) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	_, ok := vm.kv[key]
	return ok
}

// Len returns the number of entries.
func (vm *VMap[kT, vT]) Len() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.kv)
}

// Range iterates over all key-value pairs with read lock protection.
// Iteration stops early when f returns false. f must not modify the map.
func (vm *VMap[kT, vT]) Range(f func(key kT, val vT) bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for k, v := range vm.kv {
		if !f(k, v) {
			return
		}
	}
}

// Delete removes key from the map. No-op when the key is absent.
func (vm *VMap[kT, vT]) Delete(key kT) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	delete(vm.kv, key)
}
