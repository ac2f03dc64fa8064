package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/memstore/memory"
)

// Request and response field names.
const (
	fieldKey       = "key"
	fieldValue     = "value"
	fieldTimestamp = "timestamp"
	fieldStaleness = "staleness"
	fieldOwner     = "owner"
	fieldFound     = "found"
	fieldVersions  = "versions"
	fieldKeys      = "keys"
)

func stringField(msg *structpb.Struct, name string) string {
	return msg.GetFields()[name].GetStringValue()
}

func valueField(msg *structpb.Struct, name string) any {
	v, ok := msg.GetFields()[name]
	if !ok {
		return nil
	}
	return v.AsInterface()
}

func timestampField(msg *structpb.Struct) (time.Time, error) {
	raw := stringField(msg, fieldTimestamp)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// toValue converts v to a protobuf value. Types structpb does not know are
// passed through their JSON encoding.
func toValue(v any) (*structpb.Value, error) {
	if pv, err := structpb.NewValue(v); err == nil {
		return pv, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
	return pv, nil
}

func encodeVersions(versions []memory.Version) (*structpb.Value, error) {
	list := make([]*structpb.Value, 0, len(versions))
	for _, v := range versions {
		value, err := toValue(v.Value)
		if err != nil {
			return nil, err
		}
		list = append(list, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				fieldValue:     value,
				fieldTimestamp: structpb.NewStringValue(formatTimestamp(v.Timestamp)),
			},
		}))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
}

func decodeVersions(msg *structpb.Struct) ([]memory.Version, error) {
	list := msg.GetFields()[fieldVersions].GetListValue().GetValues()
	versions := make([]memory.Version, 0, len(list))
	for _, item := range list {
		entry := item.GetStructValue()
		ts, err := timestampField(entry)
		if err != nil {
			return nil, err
		}
		versions = append(versions, memory.Version{
			Value:     valueField(entry, fieldValue),
			Timestamp: ts,
		})
	}
	return versions, nil
}
