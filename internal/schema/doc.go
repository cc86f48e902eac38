// Package schema defines the persisted entity types for the hearth data layer.
//
// Every entity carries two identities:
//
//   - A local id, assigned by the record store on insert. Local ids are
//     monotonic within one database file and are NOT stable across devices
//     or reinstalls.
//   - A sync id, a randomly generated identifier assigned once when the
//     entity is constructed and never reassigned. The sync id is the only
//     key safe to use across devices and is the replication key for the
//     sync engine.
//
// Money amounts are decimal values (shopspring/decimal) and calendar dates
// are civil dates (cloud.google.com/go/civil), so no arithmetic in this
// module ever touches time zones or float rounding.
package schema
