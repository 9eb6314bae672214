package session

import (
	"context"
	"time"
)

// CompactionConfig controls one compaction pass (§4.1 "Compaction").
type CompactionConfig struct {
	// PreserveRecent is the number of trailing messages kept verbatim.
	PreserveRecent int
	// Threshold, relative to ModelContextSize, above which a session is
	// considered for auto_compact / compact_batch.
	Threshold float64
}

// Summarize reduces a prefix of messages to a single summary string.
// Token counts are supplied by the caller: the store does no
// tokenization of its own (§4.1).
type Summarize func(ctx context.Context, messages []Message) (summary string, originalTokens, compressedTokens int, err error)

// Compact replaces every message but the last cfg.PreserveRecent with a
// single synthetic System message carrying summarize's output, and
// appends a CompactionRecord (§8 invariant 1).
func (st *Store) Compact(ctx context.Context, id string, cfg CompactionConfig, summarize Summarize) error {
	snap, err := st.Get(id)
	if err != nil {
		return err
	}

	if len(snap.Messages) <= cfg.PreserveRecent {
		return nil
	}

	cut := len(snap.Messages) - cfg.PreserveRecent
	prefix := snap.Messages[:cut]
	recent := snap.Messages[cut:]

	summary, origTokens, compTokens, err := summarize(ctx, prefix)
	if err != nil {
		return err
	}

	return st.Update(id, func(s *Session) {
		s.Messages = append([]Message{{
			Role:      RoleSystem,
			Content:   summary,
			Timestamp: time.Now(),
		}}, recent...)
		s.CompactionHistory = append(s.CompactionHistory, CompactionRecord{
			OriginalTokens:   origTokens,
			CompressedTokens: compTokens,
			Timestamp:        time.Now(),
		})
	})
}

// TokenEstimator estimates the total token count of a session's
// messages, supplied by the caller since the store never tokenizes.
type TokenEstimator func(messages []Message) int

// CompactBatch compacts every live session whose estimated token count
// exceeds cfg.Threshold * modelContextSize.
func (st *Store) CompactBatch(ctx context.Context, cfg CompactionConfig, modelContextSize int, estimate TokenEstimator, summarize Summarize) ([]string, error) {
	var compacted []string
	for _, id := range st.List() {
		snap, err := st.Get(id)
		if err != nil {
			continue
		}
		if float64(estimate(snap.Messages)) <= cfg.Threshold*float64(modelContextSize) {
			continue
		}
		if err := st.Compact(ctx, id, cfg, summarize); err != nil {
			return compacted, err
		}
		compacted = append(compacted, id)
	}
	return compacted, nil
}

// AutoCompact is CompactBatch run opportunistically (e.g. on a timer or
// after every turn); it is identical in behavior, kept as a distinct
// name to match the two call sites named in §4.1.
func (st *Store) AutoCompact(ctx context.Context, cfg CompactionConfig, modelContextSize int, estimate TokenEstimator, summarize Summarize) ([]string, error) {
	return st.CompactBatch(ctx, cfg, modelContextSize, estimate, summarize)
}
