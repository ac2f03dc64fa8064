// Package rpc exposes a memory over Connect RPC. Messages are
// google.protobuf.Struct values so no generated code is required.
package rpc

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/memstore/memory"
	"github.com/tailored-agentic-units/memstore/observability"
)

// ServiceName is the fully-qualified Connect service name.
const ServiceName = "memstore.v1.MemoryService"

// Procedure paths served by NewHandler.
const (
	StoreProcedure    = "/" + ServiceName + "/Store"
	RecallProcedure   = "/" + ServiceName + "/Recall"
	RetrieveProcedure = "/" + ServiceName + "/Retrieve"
	ReleaseProcedure  = "/" + ServiceName + "/Release"
	HistoryProcedure  = "/" + ServiceName + "/History"
	KeysProcedure     = "/" + ServiceName + "/Keys"
)

// EventRequest is emitted once per handled RPC.
const EventRequest observability.EventType = "rpc.request"

type service struct {
	mem *memory.Memory
}

// NewHandler returns the path prefix and handler serving mem. Mount the
// handler on a mux at the returned path.
func NewHandler(mem *memory.Memory, opts ...connect.HandlerOption) (string, http.Handler) {
	svc := &service{mem: mem}

	mux := http.NewServeMux()
	mux.Handle(StoreProcedure, connect.NewUnaryHandler(StoreProcedure, svc.store, opts...))
	mux.Handle(RecallProcedure, connect.NewUnaryHandler(RecallProcedure, svc.recall, opts...))
	mux.Handle(RetrieveProcedure, connect.NewUnaryHandler(RetrieveProcedure, svc.retrieve, opts...))
	mux.Handle(ReleaseProcedure, connect.NewUnaryHandler(ReleaseProcedure, svc.release, opts...))
	mux.Handle(HistoryProcedure, connect.NewUnaryHandler(HistoryProcedure, svc.history, opts...))
	mux.Handle(KeysProcedure, connect.NewUnaryHandler(KeysProcedure, svc.keys, opts...))

	return "/" + ServiceName + "/", mux
}

// WithObserver reports every handled request to obs.
func WithObserver(obs observability.Observer) connect.HandlerOption {
	return connect.WithInterceptors(observerInterceptor(obs))
}

func observerInterceptor(obs observability.Observer) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			level := observability.LevelVerbose
			code := "ok"
			if err != nil {
				level = observability.LevelWarning
				code = connect.CodeOf(err).String()
			}

			obs.OnEvent(ctx, observability.NewEvent(EventRequest, level, req.Spec().Procedure, map[string]any{
				"code":     code,
				"duration": time.Since(start),
			}))
			return resp, err
		}
	}
}

// request extracts the key and binds the request's owner to ctx.
func request(ctx context.Context, msg *structpb.Struct) (context.Context, string, error) {
	key := stringField(msg, fieldKey)
	if key == "" {
		return ctx, "", ErrMissingKey
	}
	if owner := stringField(msg, fieldOwner); owner != "" {
		ctx = memory.WithOwner(ctx, memory.Owner(owner))
	}
	return ctx, key, nil
}

func (s *service) store(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ctx, key, err := request(ctx, req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	ts, err := timestampField(req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	var opts []memory.StoreOption
	if !ts.IsZero() {
		opts = append(opts, memory.WithTimestamp(ts))
	}

	if err := s.mem.Store(ctx, key, valueField(req.Msg, fieldValue), opts...); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&structpb.Struct{}), nil
}

type readFunc func(ctx context.Context, key string, opts ...memory.RecallOption) (any, bool, error)

func (s *service) recall(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return read(ctx, req, s.mem.Recall)
}

// retrieve reads without retaining the key lock and needs no owner.
func (s *service) retrieve(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return read(ctx, req, s.mem.Retrieve)
}

func read(ctx context.Context, req *connect.Request[structpb.Struct], fn readFunc) (*connect.Response[structpb.Struct], error) {
	ctx, key, err := request(ctx, req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	staleness, err := memory.ParseStaleness(stringField(req.Msg, fieldStaleness))
	if err != nil {
		return nil, connectError(err)
	}

	value, found, err := fn(ctx, key, memory.WithStaleness(staleness))
	if err != nil {
		return nil, connectError(err)
	}

	pv, err := toValue(value)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldValue: pv,
			fieldFound: structpb.NewBoolValue(found),
		},
	}), nil
}

func (s *service) release(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ctx, key, err := request(ctx, req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	if err := s.mem.Release(ctx, key); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&structpb.Struct{}), nil
}

func (s *service) history(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ctx, key, err := request(ctx, req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	history, err := s.mem.History(ctx, key)
	if err != nil {
		return nil, connectError(err)
	}

	versions, err := encodeVersions(history)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&structpb.Struct{
		Fields: map[string]*structpb.Value{fieldVersions: versions},
	}), nil
}

func (s *service) keys(_ context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	keys := s.mem.Keys()
	list := make([]*structpb.Value, 0, len(keys))
	for _, k := range keys {
		list = append(list, structpb.NewStringValue(k))
	}

	return connect.NewResponse(&structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldKeys: structpb.NewListValue(&structpb.ListValue{Values: list}),
		},
	}), nil
}
