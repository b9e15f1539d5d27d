package store

import (
	"encoding/json"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/roach88/genlock/internal/ir"
)

// marshalArgs converts event args to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so stored rows are byte-stable.
func marshalArgs(args map[string]string) (string, error) {
	if args == nil {
		args = map[string]string{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored args JSON.
func unmarshalArgs(data string) (map[string]string, error) {
	args := map[string]string{}
	if data == "" || data == "{}" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

// marshalBits encodes an unlock bit-set for the BLOB column.
func marshalBits(b *bitset.BitSet) ([]byte, error) {
	if b == nil {
		b = bitset.New(0)
	}
	data, err := b.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal unlocked bits: %w", err)
	}
	return data, nil
}

// unmarshalBits decodes an unlock bit-set from the BLOB column.
func unmarshalBits(data []byte) (*bitset.BitSet, error) {
	b := &bitset.BitSet{}
	if err := b.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("unmarshal unlocked bits: %w", err)
	}
	return b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableAsset returns the asset id column value for an event, or nil for
// catalog events.
func nullableAsset(ev ir.Event) any {
	if id, ok := ev.AssetID(); ok {
		return id.String()
	}
	return nil
}
