// Package chat holds the room chat data model shared by the history fetcher, the stream
// connection and the session.
//
// Ordering model:
//   - A MessageBuffer is always oldest-first. Seq is assigned on insert and only grows.
//   - Inbound stream payloads may carry several newline-delimited frames; DecodeFrames keeps
//     the good ones and reports the bad ones individually.
package chat
