package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "genlock/event/v1"
	DomainState = "genlock/state/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id of a journal event.
// The tx id is excluded: it correlates logs but is not part of what
// happened, so replays under fresh tx ids keep the same event ids.
func EventID(seq int64, op Op, caller Identity, args map[string]string) (string, error) {
	if args == nil {
		args = map[string]string{}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"seq":    seq,
		"op":     string(op),
		"caller": string(caller),
		"args":   args,
	})
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
func MustEventID(seq int64, op Op, caller Identity, args map[string]string) string {
	id, err := EventID(seq, op, caller, args)
	if err != nil {
		panic(err)
	}
	return id
}

// StateHash computes a content hash over a snapshot. Two snapshots hash
// equal iff every generation field, every asset bitmask, every active tier
// and the default base URI are equal.
func StateHash(s Snapshot) (string, error) {
	canonical, err := MarshalCanonical(snapshotToCanonical(s))
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

func snapshotToCanonical(s Snapshot) map[string]any {
	gens := make([]any, len(s.Generations))
	for i, g := range s.Generations {
		gens[i] = map[string]any{
			"id":           uint64(g.ID),
			"name":         g.Name,
			"base_uri":     g.BaseURI,
			"price":        g.Price.String(),
			"prerequisite": uint64(g.Prerequisite),
			"auto_unlock":  g.AutoUnlock,
			"enabled":      g.Enabled,
			"available":    g.Available,
			"unlocks":      g.Unlocks,
			"activations":  g.Activations,
		}
	}

	assets := make([]any, len(s.Assets))
	for i, a := range s.Assets {
		ids := a.UnlockedIDs()
		unlocked := make([]any, len(ids))
		for j, id := range ids {
			unlocked[j] = uint64(id)
		}
		assets[i] = map[string]any{
			"id":       a.ID.String(),
			"unlocked": unlocked,
			"active":   uint64(a.Active),
		}
	}

	return map[string]any{
		"default_base_uri": s.DefaultBaseURI,
		"generations":      gens,
		"assets":           assets,
	}
}
