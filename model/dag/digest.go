package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// BatchDigest is the content-derived identifier of a transaction batch. It is
// the key used for fetching a batch body and for deduplicating concurrent
// fetches of the same batch.
type BatchDigest [32]byte

// ZeroDigest is the zero value of a batch digest. A certificate referencing
// the zero digest is malformed.
var ZeroDigest = BatchDigest{}

// HashedBatchDigest computes the digest of a batch payload. Transactions are
// length-prefixed before hashing so that the digest is unambiguous with
// respect to transaction boundaries.
func HashedBatchDigest(transactions [][]byte) BatchDigest {
	hasher := sha256.New()
	var buf [8]byte
	for _, tx := range transactions {
		binary.BigEndian.PutUint64(buf[:], uint64(len(tx)))
		_, _ = hasher.Write(buf[:])
		_, _ = hasher.Write(tx)
	}
	var digest BatchDigest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// DigestFromHex parses a batch digest from its hex representation.
func DigestFromHex(s string) (BatchDigest, error) {
	var digest BatchDigest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ZeroDigest, fmt.Errorf("could not decode digest hex: %w", err)
	}
	if len(raw) != len(digest) {
		return ZeroDigest, fmt.Errorf("invalid digest length: got %d, want %d", len(raw), len(digest))
	}
	copy(digest[:], raw)
	return digest, nil
}

func (d BatchDigest) String() string {
	return hex.EncodeToString(d[:])
}

func (d BatchDigest) IsZero() bool {
	return d == ZeroDigest
}

func (d BatchDigest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *BatchDigest) UnmarshalText(text []byte) error {
	digest, err := DigestFromHex(string(text))
	if err != nil {
		return err
	}
	*d = digest
	return nil
}
