package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/network"
)

// requestBatchMethod is the full gRPC method name of the worker's batch
// retrieval handler.
const requestBatchMethod = "/arbor.WorkerAPI/RequestBatch"

// DefaultRequestTimeout bounds a single request_batch call; retries across
// calls are the fetcher's concern.
const DefaultRequestTimeout = 10 * time.Second

// batchRequest and batchResponse are the wire messages of the RequestBatch
// RPC, encoded with the msgpack codec.
type batchRequest struct {
	Digest dag.BatchDigest
}

type batchResponse struct {
	Found bool
	Batch *dag.Batch
}

// Config configures the worker RPC client.
type Config struct {
	// Workers maps worker IDs to their dial addresses.
	Workers map[dag.WorkerID]string
	// RequestTimeout bounds a single request_batch call. Defaults to
	// DefaultRequestTimeout when zero.
	RequestTimeout time.Duration
}

// Client implements network.WorkerClient over gRPC. Connections are dialed
// lazily and reused across requests.
type Client struct {
	log     zerolog.Logger
	cfg     Config
	mu      sync.Mutex
	conns   map[dag.WorkerID]*grpc.ClientConn
	dialOpt []grpc.DialOption
}

var _ network.WorkerClient = (*Client)(nil)

func NewClient(log zerolog.Logger, cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Client{
		log:   log.With().Str("component", "worker_client").Logger(),
		cfg:   cfg,
		conns: make(map[dag.WorkerID]*grpc.ClientConn),
		dialOpt: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.ForceCodec(msgpackCodec{})),
		},
	}
}

func (c *Client) RequestBatch(ctx context.Context, digest dag.BatchDigest, worker dag.WorkerID) (*dag.Batch, error) {
	conn, err := c.conn(worker)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req := batchRequest{Digest: digest}
	var resp batchResponse
	err = conn.Invoke(ctx, requestBatchMethod, &req, &resp)
	if err != nil {
		return nil, fmt.Errorf("could not request batch %v from worker %d: %w", digest, worker, err)
	}
	if !resp.Found || resp.Batch == nil {
		return nil, network.ErrBatchNotFound
	}

	return resp.Batch, nil
}

// conn returns the connection for the given worker, dialing it on first use.
func (c *Client) conn(worker dag.WorkerID) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[worker]; ok {
		return conn, nil
	}

	addr, ok := c.cfg.Workers[worker]
	if !ok {
		return nil, fmt.Errorf("unknown worker %d", worker)
	}

	conn, err := grpc.Dial(addr, c.dialOpt...)
	if err != nil {
		return nil, fmt.Errorf("could not dial worker %d at %s: %w", worker, addr, err)
	}
	c.conns[worker] = conn
	c.log.Debug().Uint32("worker", uint32(worker)).Str("address", addr).Msg("dialed worker")

	return conn, nil
}

// Close closes all open worker connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, conn := range c.conns {
		_ = conn.Close()
		delete(c.conns, id)
	}
	return nil
}
