// Package requestor authenticates session requests towards an IRMA server.
//
// A request is sent as plain JSON (methods none and token) or as a requestor
// JWT signed with HS256 (hmac) or RS256 (publickey). The JWT carries the
// request under a session-type specific claim:
//
//	disclosing  sprequest   sub=verification_request
//	issuing     iprequest   sub=issue_request
//	signing     absrequest  sub=signature_request
package requestor
