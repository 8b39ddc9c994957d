// Package password implements credential hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The format is self-describing, so cost parameters can be raised later and
// stale hashes detected via [Hasher.NeedsUpgrade] for re-hashing on the next
// successful login. A stored value that does not parse is a hard
// [ErrCredentialFormat], never a silent "no match": it signals data
// corruption, not a wrong password.
//
// # Timing
//
// Digest comparison is constant time. [Hasher.DummyVerify] burns one full
// hash-and-compare cycle and always reports false; login flows call it when
// no account matches the identifier, so "unknown user" and "known user,
// wrong password" take statistically indistinguishable time.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy beyond a
// minimum length is enforced by the Engine.
package password
