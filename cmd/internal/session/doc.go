// Package session holds the client's credential pair between process runs.
//
// A Session is an explicit object over a pluggable Store with two fixed
// slots: the short-lived access credential ("accessToken") and the
// longer-lived refresh credential ("refreshToken"). Stores exist for
// process memory, a local file (optionally sealed at rest), Redis and
// Postgres, so several CLI hosts or workers can share one login.
//
// Credentials are opaque to this package; it never parses or validates them.
package session
