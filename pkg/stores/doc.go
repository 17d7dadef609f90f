// Package stores persists result records in SQLite.
//
// Each finished-evaluation event's records are saved as kind-tagged JSON
// payloads with their batch id and event provenance. Stored records can be
// re-loaded in insertion order to re-render report tables offline. The
// schema is managed by embedded migrations.
package stores
