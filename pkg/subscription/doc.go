// Package subscription keeps the active GENA event subscriptions of a
// control point and keeps them alive.
//
// Every entry is keyed by its subscription id (SID) and carries the timeout
// granted by the publisher. A single background loop handles all entries:
//
//   - plain entries are removed and reported once their expiry time (granted
//     timeout plus a margin) has passed;
//   - auto-renew entries are renewed when the remaining time drops below the
//     renewal lead. A successful renewal resets the expiry; a failed one
//     removes the entry at once, without retry.
//
// Renewals run one after another on the loop goroutine, outside the holder
// lock. A slow publisher therefore delays the renewals queued behind it but
// never blocks Add, Remove or Get.
//
// An infinite grant (TIMEOUT: infinite, stored as a zero timeout) never
// expires and is never renewed. A subscription without a SID is never stored.
package subscription
