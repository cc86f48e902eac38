// Package sync replicates the record store's table set against the per-user
// cloud document store.
//
// The protocol is whole-table replication, not a CRDT:
//
//   - Upload assigns sync ids to any rows missing one, then merge-writes
//     every local row to users/{uid}/{table}/{syncID}. Granularity is
//     last-writer-wins per record per call site.
//   - Download reads each remote collection in full and replaces the local
//     tables inside one store transaction ("cloud wins"). Local edits that
//     were never uploaded are lost; callers that need them must upload
//     before downloading.
//   - On sign-in, an empty remote members collection means first-time cloud
//     bootstrap (upload); anything else treats cloud state as authoritative
//     (download). There is no merge step.
//
// References between replicated tables travel as sync ids and are remapped
// to fresh local ids on download. References into tables outside the
// replicated set (payment methods, subscriptions) travel as raw local ids:
// they survive a same-device round trip but are not meaningful on another
// device, a known limitation of the table-set design.
package sync
