package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"

	"github.com/bgpkit/monocle/internal/chanutil"
	"github.com/bgpkit/monocle/internal/metrics"
	"github.com/bgpkit/monocle/internal/rpcerr"
)

// sendGrace is how long Conn will block trying to enqueue an outbound
// envelope on a saturated connection before giving up on it (spec.md
// §4.6 "a connection that can't keep up with backpressure is dropped,
// not the whole server stalled").
const sendGrace = 5 * time.Second

// Conn serves one WebSocket client connection: reads request
// envelopes, dispatches them against a Registry, and writes response
// envelopes back. Structurally this is stages/websocket.go's
// connReader/connWriter split, narrowed to the server side only (this
// module never dials out) and built around JSON envelopes instead of
// raw bgpfix wire messages.
type Conn struct {
	zerolog.Logger

	ws       *websocket.Conn
	registry *Registry
	ops      *opTracker
	metrics  *metrics.Registry

	out     chan Response
	wg      sync.WaitGroup
	closed  atomic.Bool
	maxSize int64
}

func newConn(ws *websocket.Conn, registry *Registry, m *metrics.Registry, maxConcurrentOps int, maxMessageSize int64, logger zerolog.Logger) *Conn {
	return &Conn{
		Logger:   logger,
		ws:       ws,
		registry: registry,
		ops:      newOpTracker(maxConcurrentOps, m),
		metrics:  m,
		out:      make(chan Response, 64),
		maxSize:  maxMessageSize,
	}
}

// Serve blocks until the connection closes or ctx is cancelled.
func (c *Conn) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.metrics != nil {
		c.metrics.ConnectionOpened()
		defer c.metrics.ConnectionClosed()
	}
	// gorilla/websocket fails the whole connection once SetReadLimit is
	// exceeded, but an oversized request must stay a per-request
	// InvalidRequest error (spec.md §8) with the connection left open.
	// So the library's limit is only a generous backstop against an
	// unbounded read, and readLoop enforces c.maxSize itself.
	c.ws.SetReadLimit(hardReadCeiling(c.maxSize))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.readLoop(ctx)

	c.ops.cancelAll()
	c.wg.Wait() // let in-flight dispatches finish emitting their terminal envelope

	c.closed.Store(true)
	chanutil.Close(c.out)
	<-writerDone
}

// hardReadCeiling is the library-level backstop passed to
// ws.SetReadLimit: generous enough that a legitimately oversized
// request (checked below against maxSize) never trips it and tears
// down the connection, but still bounded so a client can't make the
// server buffer an unlimited frame.
func hardReadCeiling(maxSize int64) int64 {
	const floor = 1 << 20 // 1 MiB
	const headroom = 2
	if maxSize <= 0 {
		return floor
	}
	if ceiling := maxSize * headroom; ceiling > floor {
		return ceiling
	}
	return floor
}

func (c *Conn) readLoop(ctx context.Context) {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.Debug().Err(err).Msg("rpc: read loop ending")
			return
		}

		if c.maxSize > 0 && int64(len(raw)) > c.maxSize {
			c.sendNow(errorResponse(nil, rpcerr.New(rpcerr.InvalidRequest, "request exceeds maximum message size")))
			continue
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.sendNow(errorResponse(nil, rpcerr.Wrap(rpcerr.InvalidRequest, "malformed JSON envelope", err)))
			continue
		}
		if req.Method == "" {
			c.sendNow(errorResponse(req.ID, rpcerr.New(rpcerr.InvalidRequest, "method is required")))
			continue
		}

		c.wg.Add(1)
		go func(req Request) {
			defer c.wg.Done()
			c.dispatch(ctx, req)
		}(req)
	}
}

func (c *Conn) dispatch(ctx context.Context, req Request) {
	if c.metrics != nil {
		c.metrics.MethodCall(req.Method)
	}
	ctx = withOps(ctx, c.ops)

	m, ok := c.registry.lookup(req.Method)
	if !ok {
		c.sendNow(errorResponse(req.ID, rpcerr.New(rpcerr.UnknownMethod, fmt.Sprintf("unknown method %q", req.Method))))
		return
	}

	switch {
	case m.unary != nil:
		c.runUnary(ctx, req, m.unary)
	case m.stream != nil:
		c.runStream(ctx, req, m.stream)
	}
}

func (c *Conn) runUnary(ctx context.Context, req Request, fn UnaryFunc) {
	result, err := fn(ctx, req.Params)
	if err != nil {
		c.sendNow(errorResponse(req.ID, rpcerr.As(err)))
		return
	}
	data, rerr := marshalData(result)
	if rerr != nil {
		c.sendNow(errorResponse(req.ID, rerr))
		return
	}
	c.sendNow(resultResponse(req.ID, data))
}

func (c *Conn) runStream(parent context.Context, req Request, fn StreamFunc) {
	opID := uuid.NewString()

	if err := c.ops.acquire(); err != nil {
		c.sendNow(errorResponse(req.ID, rpcerr.New(rpcerr.RateLimited, "too many concurrent operations, try again")))
		return
	}
	defer c.ops.release()

	ctx, cancel := context.WithCancel(parent)
	c.ops.register(opID, cancel)
	defer func() {
		c.ops.forget(opID)
		cancel()
	}()

	emit := func(v any) error {
		data, rerr := marshalData(v)
		if rerr != nil {
			return rerr
		}
		return c.send(ctx, dataResponse(req.ID, opID, data))
	}

	err := fn(ctx, req.Params, emit)
	switch {
	case ctx.Err() != nil:
		c.sendNow(cancelledResponse(req.ID, opID))
	case err != nil:
		c.sendNow(errorResponse(req.ID, rpcerr.As(err)))
	default:
		c.sendNow(Response{ID: req.ID, OpID: &opID, Type: TypeResult})
	}
}

// send enqueues resp, giving up (and logging) if the connection stays
// saturated past sendGrace — this connection gets dropped rather than
// letting one slow client back up every operation server-wide.
func (c *Conn) send(ctx context.Context, resp Response) error {
	timer := time.NewTimer(sendGrace)
	defer timer.Stop()

	select {
	case c.out <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		c.Warn().Msg("rpc: connection not draining fast enough, dropping it")
		c.ws.Close()
		return fmt.Errorf("rpc: send timed out after %s", sendGrace)
	}
}

// sendNow enqueues resp without blocking, dropping it if the outbound
// buffer is full. closed is checked first as a fast path, but Serve's
// close(c.out) can still race a concurrent sendNow from another
// dispatch goroutine; the recover guards that send-on-closed panic the
// same way chanutil.Send guards it for stages/websocket.go's teardown races.
func (c *Conn) sendNow(resp Response) {
	if c.closed.Load() {
		return
	}
	defer func() { recover() }()
	select {
	case c.out <- resp:
	default:
		c.Warn().Msg("rpc: outbound buffer full, dropping response")
	}
}

// writeLoop drains c.out onto the socket. Every streaming operation's
// batches and progress ticks pass through here, so the JSON encode
// buffer is pooled with bytebufferpool rather than allocated fresh per
// response.
func (c *Conn) writeLoop() {
	defer c.ws.Close()
	for resp := range c.out {
		buf := bytebufferpool.Get()
		err := json.NewEncoder(buf).Encode(resp)
		b := append([]byte(nil), bytes.TrimRight(buf.B, "\n")...)
		bytebufferpool.Put(buf)
		if err != nil {
			c.Error().Err(err).Msg("rpc: could not encode response")
			continue
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
			c.Debug().Err(err).Msg("rpc: write loop ending")
			return
		}
	}
}
