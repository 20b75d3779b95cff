// Package credstore persists the credential pair between process runs.
//
// A Store is a small string-valued key/value store. The session manager
// only ever uses two keys (access_token and refresh_token), but the
// backends are generic so other per-user state can live next to them.
//
// Backends:
//
//   - memory: process-local map, for tests and throw-away sessions
//   - file: one JSON document on disk, optionally sealed with a passphrase
//   - badger: embedded Badger v3 database under a key prefix
//   - redis: shared Redis instance under a key prefix, optional TTL
//
// Open builds the backend named by Config.Backend.
package credstore
