// Package session implements the SessionStore: the single owner of all
// live Session values, mediating every read and mutation, and the only
// component permitted to persist or restore them.
//
// A Session is obtained by callers either as a cheap snapshot clone
// (Get) or by submitting a mutation closure that the store invokes under
// the session's own write lock (Update). Sessions are destroyed only by
// explicit Delete or TTL expiry under CleanupExpired; there is no
// implicit garbage collection.
//
// Persistence follows the same temp-file-then-rename discipline as the
// rest of this codebase's storage layer: a reader of a session file
// always observes either the prior or the new generation, never a
// partial write.
package session
