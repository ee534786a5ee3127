// Package auth provides pluggable authentication and authorization for pubgate.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from
// publication. The middleware injects the identity and its tenant into the
// request context; object permissions are checked later, during traversal,
// against the identity's scopes.
package auth
