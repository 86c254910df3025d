package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/memento/internal/ir"
)

// marshalMeta converts meta to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalMeta(meta map[string]string) (string, error) {
	data, err := ir.MarshalCanonical(ir.StringMap(meta))
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	return string(data), nil
}

// marshalIDs converts an id set to a sorted canonical JSON array.
func marshalIDs(ids []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.StringList(ir.NormalizeParents(ids)))
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

// unmarshalMeta parses JSON TEXT to a meta map. Never returns nil.
func unmarshalMeta(data string) (map[string]string, error) {
	meta := map[string]string{}
	if data == "" || data == "{}" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}

// unmarshalIDs parses JSON TEXT to an id list. Never returns nil.
func unmarshalIDs(data string) ([]string, error) {
	ids := []string{}
	if data == "" || data == "[]" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}

// nodeColumns holds the serialized columns shared by nodes and events.
type nodeColumns struct {
	meta    string
	parents string
}

func marshalNode(n ir.EventNode) (nodeColumns, error) {
	meta, err := marshalMeta(n.Meta)
	if err != nil {
		return nodeColumns{}, err
	}
	parents, err := marshalIDs(n.Parents)
	if err != nil {
		return nodeColumns{}, err
	}
	return nodeColumns{meta: meta, parents: parents}, nil
}
