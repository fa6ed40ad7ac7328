// Package gateway provides the secured request gateway: the single HTTP
// client through which every call to the banking API is issued.
//
// Each outbound request passes through an authorization stage that reads
// the session credential and, when one exists, sets
// "Authorization: Bearer <token>". Each received response passes through a
// session-expiry stage: a 401 or 403 ends the session, navigates to the
// sign-in route and is then returned to the caller as an *HTTPError.
// Failures that never produced a response are returned as *TransportError
// and never trigger a teardown.
//
// Stages are fixed when the Gateway is constructed. Processes that want a
// single shared instance use Init and Default.
package gateway
