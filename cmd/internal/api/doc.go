// Package api wraps the GlowGuard backend routes in typed calls.
//
// Auth covers credential issuance and logout, Users the profile, and Skin the
// analysis endpoints. All calls go through one apiclient.Client, so they share
// its session and refresh behavior.
package api
