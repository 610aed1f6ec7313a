package strata

import "fmt"

// IDExhaustedError reports that the allocator has handed out every index up
// to its configured maximum.
type IDExhaustedError struct {
	Max uint32
}

func (e IDExhaustedError) Error() string {
	return fmt.Sprintf("entity IDs exhausted (max %d)", e.Max)
}

// UnknownEntityError reports an operation against an ID that is not alive in
// the manager it was handed to.
type UnknownEntityError struct {
	ID EntityID
}

func (e UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity (%d, %d)", e.ID.Index, e.ID.Generation)
}

// UnregisteredComponentError reports a component type that was used in a mask
// before being registered with the runtime.
type UnregisteredComponentError struct {
	TypeID TypeID
}

func (e UnregisteredComponentError) Error() string {
	return fmt.Sprintf("component type %d is not registered", e.TypeID)
}

// LayoutOversubscribedError reports a mask whose single row does not fit the
// fixed chunk budget; no chunk can ever be constructed for it.
type LayoutOversubscribedError struct {
	PerRow int
}

func (e LayoutOversubscribedError) Error() string {
	return fmt.Sprintf("component row of %d bytes exceeds the %d byte chunk budget", e.PerRow, ChunkSizeBytes)
}

// ChunkFullError reports an append into a chunk that already holds its full
// capacity of rows.
type ChunkFullError struct {
	Capacity int
}

func (e ChunkFullError) Error() string {
	return fmt.Sprintf("chunk is full (capacity %d)", e.Capacity)
}

// TooManyComponentTypesError reports registration beyond the mask width.
type TooManyComponentTypesError struct {
	Limit int
}

func (e TooManyComponentTypesError) Error() string {
	return fmt.Sprintf("cannot register more than %d component types", e.Limit)
}

// SparseComponentInQueryError reports a sparse component used in a query;
// sparse types never appear in masks and cannot be matched.
type SparseComponentInQueryError struct {
	TypeID TypeID
}

func (e SparseComponentInQueryError) Error() string {
	return fmt.Sprintf("sparse component type %d cannot appear in a query", e.TypeID)
}

// ServiceNotFoundError reports a service lookup for a type that was never
// registered with the locator.
type ServiceNotFoundError struct {
	Service string
}

func (e ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service not registered: %s", e.Service)
}
