// Package status watches the status of one IRMA session.
//
// A watch is lazy and single-shot: it subscribes to {u}/statusevents when a
// push mechanism is configured and falls back to polling {u}/status on a fixed
// interval when the push channel is unavailable. The fallback happens only
// when push failed before any message arrived; a push channel that breaks
// after delivering data fails the watch.
//
// WaitConnected and WaitDone express the two phases of a session as
// expectations: any other resolved status is returned as *UnexpectedStatusError.
package status
