// Package store persists canonical records as typed key-value items.
//
// Two backends implement ingest.RecordStore:
//
//   - Postgres keeps one row per system id in guarantee_instruments with the
//     typed attributes in a JSONB column.
//   - Redis keeps one hash per system id, one hash field per attribute.
//
// Both replace the whole item on write, so attributes absent from a newer
// row do not linger from an older one.
package store
