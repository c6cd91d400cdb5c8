// Package registry keeps the set of discovered devices and expires them when
// their advertisements lapse.
//
// A single background loop serves all entries. On every wake it removes the
// entries whose expiry time has passed, reports them to the expiry listener
// (outside the lock, oldest first) and sleeps until the earliest remaining
// expiry plus a margin. Add wakes the loop so a new, earlier deadline is
// picked up immediately. Pinned devices are never expired.
package registry
