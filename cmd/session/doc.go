// Package session drives IRMA sessions from the requestor side.
//
// A Client starts a session at an IRMA server, presents its pointer through a
// Renderer, follows its status through a status.Watcher and retrieves the
// result. The lifecycle can be told to return early at Initialized or
// Connected through Options.ReturnStatus.
//
// States: Created (options validated, nothing sent), Started (pointer
// obtained), then Initialized, Connected and one of Done, Cancelled or
// Timeout. On Cancelled and Timeout the client deletes the session on the
// server, ignoring the outcome of that delete.
package session
