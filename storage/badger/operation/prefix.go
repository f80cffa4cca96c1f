package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/arborchain/arbor/model/dag"
)

const (
	// key prefixes for the executor's keyspace
	codeBatch         = 1 // batch bodies by digest
	codeExecutedRound = 2 // recovery cursor
	codeSubDag        = 3 // committed sub-DAGs by commit index
)

// makePrefix builds a composite key from a one-byte prefix code and a
// sequence of fixed-size key parts. Integer parts are encoded big-endian so
// that lexicographic key order matches numeric order.
func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1, 1+len(keys)*8)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, keyPartToBytes(key)...)
	}
	return prefix
}

func keyPartToBytes(v interface{}) []byte {
	switch i := v.(type) {
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case dag.Round:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(i))
		return b
	case dag.BatchDigest:
		return i[:]
	case string:
		return []byte(i)
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
