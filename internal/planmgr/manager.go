// Package planmgr maintains the latest Plan per session, reconciling
// entry identity across updates so a client can animate status changes
// at the entry level instead of replacing its whole task list. Plans are
// keyed by SessionId, not by a reference to a Session, to avoid the
// Session <-> Plan cycle the data model deliberately has none of (§9).
package planmgr

import (
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/oklog/ulid/v2"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// fuzzyMatchThreshold bounds the levenshtein distance (relative to the
// longer string's length) under which two descriptions are treated as
// the "same" entry when no exact match exists. This is an enrichment on
// top of the protocol's literal verbatim-match rule (§4.7, §8 invariant
// 8): it only ever runs as a fallback once exact matching has failed, so
// it never weakens the invariant for descriptions that do match verbatim.
const fuzzyMatchThreshold = 0.15

// Manager holds one Plan per session.
type Manager struct {
	mu    sync.Mutex
	plans map[string]acp.Plan
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{plans: make(map[string]acp.Plan)}
}

// Update reconciles newEntries against the prior plan for sessionID: an
// entry whose description matches a prior entry's verbatim inherits that
// entry's id; failing that, a close-enough match (by edit distance)
// inherits it too; anything left gets a freshly generated id. The
// reconciled Plan replaces the stored one and is returned for the caller
// to publish as a session/update notification.
func (m *Manager) Update(sessionID string, newEntries []acp.PlanEntry) acp.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()

	prior := m.plans[sessionID]
	used := make(map[string]bool, len(prior.Entries))

	reconciled := make([]acp.PlanEntry, len(newEntries))
	for i, e := range newEntries {
		id, ok := exactMatch(prior.Entries, e.Description, used)
		if !ok {
			id, ok = fuzzyMatch(prior.Entries, e.Description, used)
		}
		if !ok {
			id = ulid.Make().String()
		}
		used[id] = true
		reconciled[i] = acp.PlanEntry{ID: id, Description: e.Description, Status: e.Status}
	}

	plan := acp.Plan{Entries: reconciled}
	m.plans[sessionID] = plan
	return plan
}

// Get returns the current plan for a session, or the zero Plan if none
// exists yet.
func (m *Manager) Get(sessionID string) acp.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plans[sessionID]
}

// Delete removes the stored plan for a session, called on session/delete
// so plan storage does not outlive the session it belongs to (§9: "global"
// state has a well-defined lifecycle, cleared per-session on delete).
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, sessionID)
}

func exactMatch(prior []acp.PlanEntry, description string, used map[string]bool) (string, bool) {
	for _, e := range prior {
		if used[e.ID] {
			continue
		}
		if e.Description == description {
			return e.ID, true
		}
	}
	return "", false
}

func fuzzyMatch(prior []acp.PlanEntry, description string, used map[string]bool) (string, bool) {
	bestID := ""
	bestRatio := 1.0
	for _, e := range prior {
		if used[e.ID] {
			continue
		}
		dist := levenshtein.ComputeDistance(e.Description, description)
		longest := len(e.Description)
		if len(description) > longest {
			longest = len(description)
		}
		if longest == 0 {
			continue
		}
		ratio := float64(dist) / float64(longest)
		if ratio <= fuzzyMatchThreshold && ratio < bestRatio {
			bestRatio = ratio
			bestID = e.ID
		}
	}
	return bestID, bestID != ""
}

// FromRawInput parses a TodoWrite tool call's raw_input payload into plan
// entries, taking the list from whichever of the "todos", "items" or
// "tasks" keys the model provider used.
func FromRawInput(rawInput map[string]any) []acp.PlanEntry {
	list := extractList(rawInput)
	entries := make([]acp.PlanEntry, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		desc, _ := m["description"].(string)
		if desc == "" {
			desc, _ = m["content"].(string)
		}
		if desc == "" {
			continue
		}
		status := acp.PlanEntryPending
		if s, ok := m["status"].(string); ok {
			switch s {
			case "in_progress", "InProgress":
				status = acp.PlanEntryInProgress
			case "completed", "Completed":
				status = acp.PlanEntryCompleted
			}
		}
		entries = append(entries, acp.PlanEntry{Description: desc, Status: status})
	}
	return entries
}

func extractList(rawInput map[string]any) []any {
	for _, key := range []string{"todos", "items", "tasks"} {
		if v, ok := rawInput[key]; ok {
			if list, ok := v.([]any); ok {
				return list
			}
		}
	}
	return nil
}
