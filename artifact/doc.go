// Package artifact contains concrete implementations of the core.ArtifactStore.
//
// The canonical ArtifactStore interface lives in the core package to avoid
// dependency cycles and keep domain contracts central. Implementation packages
// like this one (in-memory, cloud object stores, databases, etc.) provide
// storage backends that can be swapped without touching calling code.
//
// Artifacts are versioned: every save appends a new version (1-based) and
// reads default to the latest. Callers should depend on the core interface
// rather than concrete types so they can substitute alternative persistence
// layers in tests or production.
package artifact
