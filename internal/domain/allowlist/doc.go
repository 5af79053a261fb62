// Package allowlist decides which hosts bypass the remote classifier.
//
// Three lists are consulted: static safe domains (exact or subdomain match),
// the user's whitelist (exact host) and session grants created when the user
// proceeds past a warning. A proceed grant covers the exact URL once and the
// host for the rest of the session. Session grants live only in memory.
package allowlist
