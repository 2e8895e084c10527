// Package players owns player accounts and applies bound player state to
// them.
//
// Service is the consumer of both state shapes. ApplyPermissive acts on the
// optional is_admin and gold slots of a PermissiveState: a client that sets
// them is elevated to admin or credited gold with no further check. That is
// the gadget the permissive endpoint exposes. ApplyStrict receives a
// StrictState, which has no such slots, and validates item levels before
// writing.
//
// Accounts are persisted through a Store. memorystore keeps them in an LRU
// cache local to the process; redisstore shares them between instances.
package players
