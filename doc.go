// Package coordinator defines the data model shared by every component of
// the extraction-graph coordination core: namespaces, compute graphs,
// content, tasks, executors, and the state-change log that ties them
// together. Subpackages (store, statemachine, changelog, scheduler,
// allocator, gateway, streamserver) operate on these types; this package
// holds no I/O of its own.
package coordinator
