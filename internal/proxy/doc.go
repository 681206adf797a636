// Package proxy forwards requests to registered backend services.
//
// A Dispatcher resolves the service in the registry, layers headers
// (default content type, then caller, then service, then the dispatcher's
// own correlation and trace headers), and sends the request with a
// per-attempt timeout. Transport failures are retried with exponential
// backoff; any HTTP response, whatever its status, ends the call.
//
// Upstream work is detached from the caller's cancellation, so a client
// that disconnects does not abort a request already in flight.
package proxy
