// Package memory provides an in-memory storage.Store.
//
// Records live in maps guarded by a single RWMutex. A background goroutine
// drops expired tokens and authorization codes; call Stop to end it.
// The store reports its record counts through storage.Sizes, so a
// storage.Service built on it exports the storage.size gauge.
//
// Suitable for development, tests and single-instance deployments. Data is
// lost on restart.
package memory
