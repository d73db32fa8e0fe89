// Package session owns the signed-in user's identity and session lifetime.
//
// A Container starts in StatusLoading. Load settles it from the persisted
// Record (userData partition, key "session"): absent, expired, or tampered
// records are purged and the container becomes StatusUnauthenticated.
//
// Login and Signup validate locally (non-empty fields, password of at least
// six characters) before calling the Authenticator. Success stores a record
// valid for 24 hours. UpdatePreferences renews that window. IsAuthenticated
// checks expiry live, so a session that lapses while the process runs is
// purged on the next check.
//
// Collaborators observe changes through Subscribe rather than polling.
package session
