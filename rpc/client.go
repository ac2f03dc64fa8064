package rpc

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/memstore/memory"
)

type unaryClient = connect.Client[structpb.Struct, structpb.Struct]

// Client calls a remote memory. The Owner carried by ctx, if any, is sent with
// every request, so a strong-mode Recall and its matching Store pair up across
// calls exactly as they do in-process.
type Client struct {
	store    *unaryClient
	recall   *unaryClient
	retrieve *unaryClient
	release  *unaryClient
	history  *unaryClient
	keys     *unaryClient
}

// NewClient creates a Client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		store:    connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+StoreProcedure, opts...),
		recall:   connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+RecallProcedure, opts...),
		retrieve: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+RetrieveProcedure, opts...),
		release:  connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ReleaseProcedure, opts...),
		history:  connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+HistoryProcedure, opts...),
		keys:     connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+KeysProcedure, opts...),
	}
}

func keyRequest(ctx context.Context, key string) *structpb.Struct {
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldKey: structpb.NewStringValue(key),
	}}
	if owner, ok := memory.OwnerFrom(ctx); ok {
		msg.Fields[fieldOwner] = structpb.NewStringValue(owner.String())
	}
	return msg
}

// Store writes value under key. A zero ts lets the server's clock decide.
func (c *Client) Store(ctx context.Context, key string, value any, ts time.Time) error {
	msg := keyRequest(ctx, key)

	pv, err := toValue(value)
	if err != nil {
		return err
	}
	msg.Fields[fieldValue] = pv
	if !ts.IsZero() {
		msg.Fields[fieldTimestamp] = structpb.NewStringValue(formatTimestamp(ts))
	}

	_, err = c.store.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

func (c *Client) Recall(ctx context.Context, key string, staleness memory.Staleness) (any, bool, error) {
	return readCall(ctx, c.recall, key, staleness)
}

// Retrieve reads key without retaining the remote key lock.
func (c *Client) Retrieve(ctx context.Context, key string, staleness memory.Staleness) (any, bool, error) {
	return readCall(ctx, c.retrieve, key, staleness)
}

// Release ends the strong-mode hold that ctx's Owner took with Recall.
func (c *Client) Release(ctx context.Context, key string) error {
	_, err := c.release.CallUnary(ctx, connect.NewRequest(keyRequest(ctx, key)))
	return err
}

func readCall(ctx context.Context, client *unaryClient, key string, staleness memory.Staleness) (any, bool, error) {
	msg := keyRequest(ctx, key)
	if staleness != "" {
		msg.Fields[fieldStaleness] = structpb.NewStringValue(string(staleness))
	}

	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, false, err
	}

	found := resp.Msg.GetFields()[fieldFound].GetBoolValue()
	if !found {
		return nil, false, nil
	}
	return valueField(resp.Msg, fieldValue), true, nil
}

func (c *Client) History(ctx context.Context, key string) ([]memory.Version, error) {
	resp, err := c.history.CallUnary(ctx, connect.NewRequest(keyRequest(ctx, key)))
	if err != nil {
		return nil, err
	}
	return decodeVersions(resp.Msg)
}

func (c *Client) Keys(ctx context.Context) ([]string, error) {
	resp, err := c.keys.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return nil, err
	}

	values := resp.Msg.GetFields()[fieldKeys].GetListValue().GetValues()
	keys := make([]string, 0, len(values))
	for _, v := range values {
		keys = append(keys, v.GetStringValue())
	}
	return keys, nil
}
