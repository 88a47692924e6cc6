// Package rpc implements the WebSocket protocol core of spec.md §4.6:
// request/response envelopes, a method registry, a per-connection
// operation tracker enforcing the concurrency ceiling and the
// single-terminal-response invariant, and the connection loop that
// ties them to a gorilla/websocket connection.
package rpc

import (
	"encoding/json"

	"github.com/bgpkit/monocle/internal/rpcerr"
)

// Request is one client->server envelope (spec.md §4.6 "Request shape").
// ID is absent for fire-and-forget calls; present and echoed back on
// every response for calls the client wants to correlate.
type Request struct {
	ID     *string         `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseType is the envelope's "data" or "terminal" discriminator.
type ResponseType string

const (
	// TypeResult is a single, final reply to a request.
	TypeResult ResponseType = "result"
	// TypeData is one of possibly many streamed payloads for a
	// long-running operation (MRT batches, search hits, progress).
	TypeData ResponseType = "data"
	// TypeError is a terminal failure.
	TypeError ResponseType = "error"
)

// cancelledData is the Data payload of the result envelope that
// terminates a cancelled streaming operation. A cancellation is not a
// distinct envelope type: the closed set of terminal envelopes is
// result|error, so ctx cancellation resolves to a normal result whose
// data says so.
var cancelledData = json.RawMessage(`{"cancelled":true}`)

// Response is one server->client envelope (spec.md §4.6 "Response shape").
type Response struct {
	ID    *string         `json:"id,omitempty"`
	OpID  *string         `json:"op_id,omitempty"`
	Type  ResponseType    `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *rpcerr.Error   `json:"error,omitempty"`
}

func resultResponse(id *string, data json.RawMessage) Response {
	return Response{ID: id, Type: TypeResult, Data: data}
}

func dataResponse(id *string, opID string, data json.RawMessage) Response {
	return Response{ID: id, OpID: &opID, Type: TypeData, Data: data}
}

func errorResponse(id *string, err *rpcerr.Error) Response {
	return Response{ID: id, Type: TypeError, Error: err}
}

func cancelledResponse(id *string, opID string) Response {
	return Response{ID: id, OpID: &opID, Type: TypeResult, Data: cancelledData}
}

func marshalData(v any) (json.RawMessage, *rpcerr.Error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.InternalError, "could not encode response", err)
	}
	return b, nil
}
