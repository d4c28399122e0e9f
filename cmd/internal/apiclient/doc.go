// Package apiclient is the authenticated HTTP client for the GlowGuard backend.
//
// Every request carries the session's current access credential as a bearer
// token. When the backend answers 401 the client exchanges the stored refresh
// credential for a new access credential (POST /auth/refresh) and re-sends
// the original request once. Concurrent 401s share a single in-flight
// refresh. If the refresh itself fails, both credentials are cleared and the
// configured OnSessionInvalidated callback fires so the host can send the
// user back to login.
//
// Transport (logging, request IDs, metrics) is layered as an http.RoundTripper
// so the refresh call and ordinary requests are observed the same way.
package apiclient
