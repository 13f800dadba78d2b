// Package transport issues HTTP requests to an IRMA session server.
//
// One call is one logical request: there are no retries here. Any non-2xx
// response is returned as *Error carrying the status and (bounded) body so
// callers never proceed past a failed request.
package transport
