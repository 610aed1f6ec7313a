package strata

// factory implements the factory pattern for strata components.
type factory struct{}

// Factory is the global factory instance for creating strata components.
var Factory factory

// NewRuntime creates a runtime with the given options.
func (f factory) NewRuntime(opts RuntimeOptions) *Runtime {
	return NewRuntime(opts)
}

// NewEntityManager creates an entity manager on the runtime.
func (f factory) NewEntityManager(rt *Runtime) *EntityManager {
	return NewEntityManager(rt)
}

// NewQuery creates an empty query.
func (f factory) NewQuery(rt *Runtime) *Query {
	return NewQuery(rt)
}

// NewCursor creates a cursor over the query and manager.
func (f factory) NewCursor(query *Query, em *EntityManager) *Cursor {
	return NewCursor(query, em)
}

// NewChunkRegistry creates an empty spatial chunk registry.
func (f factory) NewChunkRegistry() *ChunkRegistry {
	return NewChunkRegistry()
}

// NewServiceLocator creates an empty service locator.
func (f factory) NewServiceLocator() *ServiceLocator {
	return NewServiceLocator()
}

// NewWorkerPool starts a worker pool executor.
func (f factory) NewWorkerPool(n int) *WorkerPool {
	return NewWorkerPool(n)
}
