// Package memory provides MemoryStore implementations. The contract lives in
// the core package: depend on core.MemoryStore in application code and pick a
// concrete store at wiring time.
//
// The in-memory store here suits development and tests; durable backends
// (vector databases, embedding indexes) can implement the same interface
// without introducing dependency cycles.
package memory
