// Package auth verifies caller credentials.
//
// Two independent trust paths exist. Bearer tokens are verified by a
// Verifier backed by a pluggable TokenParser (see package auth/jwt) and
// produce an Identity. A static key in the X-API-Key header is checked by
// APIKeyVerifier and only gates access.
//
// Failures are *AuthError values classified by ErrorKind; an expired token
// is always reported as KindExpiredToken, never as KindInvalidToken.
package auth
