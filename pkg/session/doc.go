// Package session coordinates one room membership: history backfill over HTTP, then a
// live websocket stream merged into a bounded, oldest-first message buffer.
//
// Lifecycle:
//   - Idle -> FetchingHistory -> Connecting -> Live -> Closed.
//   - Any step may end in Failed; a failed or closed Session is not reused, build a new
//     one (Manager does this on room switches).
//
// Events are delivered to listeners by a single dispatcher goroutine per Session, in the
// order the Session produced them. Listeners may call back into the Session, including
// Close.
package session
