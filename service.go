package strata

import (
	"reflect"
	"sync"

	"github.com/TheBitDrifter/bark"
)

// ServiceLocator hands external collaborators (renderers, asset stores,
// executors, the chunk registry) to systems by type. Registration happens
// during setup; lookups are read-mostly.
type ServiceLocator struct {
	mu       sync.RWMutex
	services map[reflect.Type]any
}

// NewServiceLocator creates an empty locator.
func NewServiceLocator() *ServiceLocator {
	return &ServiceLocator{services: make(map[reflect.Type]any)}
}

// Register stores svc, keyed by its concrete type. Pass a pointer; the same
// pointer is handed back by Service.
func (sl *ServiceLocator) Register(svc any) {
	sl.mu.Lock()
	sl.services[reflect.TypeOf(svc)] = svc
	sl.mu.Unlock()
}

// Service returns the registered *S. A missing service is a programmer
// error and panics.
func Service[S any](sl *ServiceLocator) *S {
	s, ok := TryService[S](sl)
	if !ok {
		panic(bark.AddTrace(ServiceNotFoundError{Service: reflect.TypeFor[S]().String()}))
	}
	return s
}

// TryService returns the registered *S without panicking.
func TryService[S any](sl *ServiceLocator) (*S, bool) {
	sl.mu.RLock()
	s, ok := sl.services[reflect.TypeFor[*S]()]
	sl.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.(*S), true
}
