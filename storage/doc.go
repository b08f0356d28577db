// Package storage provides the reference OAuth service collaborator.
//
// Service implements every capability the flows and grant types consume
// (service.Service) on top of a Store, a small record-level persistence
// interface. Client secrets and user passwords are stored as bcrypt hashes,
// record IDs are ULIDs, and scope requests are checked against the scope a
// client was registered with.
//
// Store implementations are provided in subpackages:
//   - storage/memory: In-memory storage for development and testing
//   - storage/valkey: Valkey/Redis-compatible distributed storage
//   - storage/sqlite: SQLite storage with embedded migrations
//   - storage/mock: func-field service mock for unit testing the flows
//   - storage/storagetest: conformance suite every Store must pass
package storage
