/*
Package session implements the per-user conversational state and the trade
lock on top of an ephemeral key/value store.

Records are JSON documents with a TTL. A record that fails to decode is
treated as absent, so a corrupt entry never wedges a user. Locks are
SET-if-absent entries carrying a random owner token; expiry is the crash
recovery path and release only deletes the caller's own token.

Within one process, WithLock additionally serializes the handling of a
user's inputs.
*/
package session
