// Package identity persists named ed25519 keypairs under the data directory.
//
// Each identity is one JSON record in <data_dir>/identities/<name>.json. The
// record stores the 32-byte private seed in base64 and is readable only by
// the owning user; it is not encrypted. Records are created lazily and never
// rewritten, so asking for the same name always yields the same key.
package identity
