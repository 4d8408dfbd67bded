// Package identity implements user accounts and authentication: registration
// with email verification, credential and Google login, access/refresh token
// issuance with jti blacklisting, password reset, role checks, and profile
// management.
//
// Token model:
//   - Signed bearer tokens (access, refresh) carry only sub/iat/exp/jti and are
//     minted by two independently keyed TokenService instances. Revocation is a
//     persisted jti blacklist, so logout invalidates tokens that are still
//     cryptographically valid.
//   - Ephemeral tokens (email verification, password reset) are random hex
//     strings looked up in the store, never signed, and consumed on use.
//
// The Sweeper removes expired ephemeral tokens, stale blacklist rows, and
// abandoned unverified signups on a schedule, and seeds the role table at
// startup.
package identity
