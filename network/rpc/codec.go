package rpc

import (
	"github.com/vmihailenco/msgpack"
)

// codecName is the content subtype announced to the gRPC transport.
const codecName = "msgpack"

// msgpackCodec marshals request/response messages with msgpack, which spares
// the executor a protobuf schema for the single worker RPC it performs.
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

func (msgpackCodec) Name() string {
	return codecName
}
