// Package fingerprint computes the stable content hash that identifies an
// uploaded document. The digest is the dedup key and the sole basis of
// session isolation, so determinism here is a correctness invariant.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded sha256 digest of data.
// Same bytes yield the same hash across runs and processes.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
