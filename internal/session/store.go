package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/internal/storage"
)

// storagePath is the key path segment every session lives under in the
// backing store, mirroring the teacher's {"session", projectID, id}
// scheme but flattened: the ACP session set isn't partitioned by
// directory the way the REST session service is.
var storagePath = []string{"acp_session"}

// ErrLimitExceeded is returned by Create when live_count >= MaxSessions.
var ErrLimitExceeded = fmt.Errorf("session: live session limit exceeded")

// ErrNotFound is returned by Get/Update/Delete for an unknown session id.
var ErrNotFound = fmt.Errorf("session: not found")

// entry pairs a live Session with its own write lock and a change
// counter driving auto-save, so concurrent Update calls on different
// sessions never contend with one another (§5 concurrency model).
type entry struct {
	mu            sync.Mutex
	session       *Session
	changeCounter int
}

// Store is the single owner of all live Session values (§4.1). It
// mediates every read and mutation and is the only component permitted
// to persist or restore them.
type Store struct {
	storage *storage.Storage

	mu       sync.RWMutex
	sessions map[string]*entry

	maxSessions       int
	autoSaveThreshold int
}

// NewStore returns a Store backed by the given storage directory.
// maxSessions <= 0 means unbounded; autoSaveThreshold <= 0 saves on
// every mutation.
func NewStore(store *storage.Storage, maxSessions, autoSaveThreshold int) *Store {
	return &Store{
		storage:           store,
		sessions:          make(map[string]*entry),
		maxSessions:       maxSessions,
		autoSaveThreshold: autoSaveThreshold,
	}
}

// Create allocates a fresh Session and registers it in memory. Fails
// with ErrLimitExceeded once live_count reaches maxSessions.
func (st *Store) Create(cfg Config) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		return nil, ErrLimitExceeded
	}

	now := time.Now()
	sess := &Session{
		ID:                 ulid.Make().String(),
		CreatedAt:          now,
		UpdatedAt:          now,
		WorkspaceDir:       cfg.WorkspaceDir,
		ProjectID:          cfg.ProjectID,
		ClientCapabilities: cfg.Capabilities,
		TranscriptPath:     cfg.TranscriptPath,
		AvailableTools:     cfg.AvailableTools,
	}

	if sess.TranscriptPath != "" {
		if err := writeTranscript(sess); err != nil {
			logging.Warn().Err(err).Str("sessionID", sess.ID).Msg("initializing transcript file")
		}
	}

	st.sessions[sess.ID] = &entry{session: sess}

	if err := st.persist(sess); err != nil {
		logging.Warn().Err(err).Str("sessionID", sess.ID).Msg("saving newly created session")
	}

	return sess.Clone(), nil
}

// Get returns a deep-copy snapshot of a live session, or ErrNotFound.
// Snapshots never expose the Store's internal lock.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Update invokes f on the live session under its own write lock. f must
// not block on external I/O (§4.1). updated_at advances and the change
// counter increments; crossing autoSaveThreshold triggers a best-effort
// save.
func (st *Store) Update(id string, f func(s *Session)) error {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	f(e.session)
	e.session.UpdatedAt = time.Now()
	e.changeCounter++
	shouldSave := st.autoSaveThreshold <= 0 || e.changeCounter >= st.autoSaveThreshold
	if shouldSave {
		e.changeCounter = 0
	}
	snapshot := e.session.Clone()
	e.mu.Unlock()

	if shouldSave {
		if err := st.persist(snapshot); err != nil {
			logging.Warn().Err(err).Str("sessionID", id).Msg("auto-save failed")
		}
	}
	return nil
}

// AppendMessage appends msg to the session's history. If a transcript
// path is configured, the message is mirrored to that file before the
// in-memory append; a transcript-write failure is logged and never
// aborts the in-memory append (§4.1: "in-memory state is authoritative").
func (st *Store) AppendMessage(id string, msg Message) error {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	if e.session.TranscriptPath != "" {
		probe := e.session.Clone()
		probe.Messages = append(probe.Messages, msg)
		if err := writeTranscript(probe); err != nil {
			logging.Warn().Err(err).Str("sessionID", id).Msg("mirroring message to transcript")
		}
	}
	e.session.Messages = append(e.session.Messages, msg)
	e.session.UpdatedAt = time.Now()
	e.changeCounter++
	shouldSave := st.autoSaveThreshold <= 0 || e.changeCounter >= st.autoSaveThreshold
	if shouldSave {
		e.changeCounter = 0
	}
	snapshot := e.session.Clone()
	e.mu.Unlock()

	if shouldSave {
		if err := st.persist(snapshot); err != nil {
			logging.Warn().Err(err).Str("sessionID", id).Msg("auto-save failed")
		}
	}
	return nil
}

// CoalesceTrailingAssistant replaces the last n Assistant messages with
// a single Assistant message whose content is their concatenation,
// byte-for-byte (§5 ordering guarantee; §9 open-question resolution:
// the streaming path stores one Message per chunk during the turn, then
// coalesces into one final message once the stream closes normally). A
// cancelled or errored turn must not call this — the partial,
// un-coalesced chunk messages stand as-is per §5's "partial assistant
// message is not retracted".
func (st *Store) CoalesceTrailingAssistant(id string, n int) error {
	if n <= 1 {
		return nil
	}
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	msgs := e.session.Messages
	if len(msgs) < n {
		e.mu.Unlock()
		return nil
	}
	tail := msgs[len(msgs)-n:]
	var sb strings.Builder
	for _, m := range tail {
		if m.Role != RoleAssistant {
			e.mu.Unlock()
			return nil
		}
		sb.WriteString(m.Content)
	}
	coalesced := Message{Role: RoleAssistant, Content: sb.String(), Timestamp: tail[len(tail)-1].Timestamp}
	e.session.Messages = append(msgs[:len(msgs)-n], coalesced)
	e.session.UpdatedAt = time.Now()
	e.changeCounter++
	shouldSave := st.autoSaveThreshold <= 0 || e.changeCounter >= st.autoSaveThreshold
	if shouldSave {
		e.changeCounter = 0
	}
	snapshot := e.session.Clone()
	e.mu.Unlock()

	if shouldSave {
		if err := st.persist(snapshot); err != nil {
			logging.Warn().Err(err).Str("sessionID", id).Msg("auto-save failed")
		}
	}
	return nil
}

// Delete removes a session from memory and storage. Returns whether an
// in-memory entry existed. A storage-delete failure is logged, never
// propagated: the in-memory removal is the part callers can rely on.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	_, existed := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if err := st.storage.Delete(context.Background(), append(append([]string(nil), storagePath...), id)); err != nil {
		logging.Warn().Err(err).Str("sessionID", id).Msg("deleting session from storage")
	}
	return existed
}

// List returns the ids of every live session.
func (st *Store) List() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Restore reads every session from the storage backend into memory and
// returns the count restored. Called once at startup.
func (st *Store) Restore() (int, error) {
	ctx := context.Background()
	ids, err := st.storage.List(ctx, storagePath)
	if err != nil {
		return 0, err
	}

	restored := 0
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, id := range ids {
		var sess Session
		if err := st.storage.Get(ctx, append(append([]string(nil), storagePath...), id), &sess); err != nil {
			logging.Warn().Err(err).Str("sessionID", id).Msg("restoring session")
			continue
		}
		st.sessions[sess.ID] = &entry{session: &sess}
		restored++
	}
	return restored, nil
}

// CleanupExpired deletes sessions whose UpdatedAt is older than
// now - ttl, from both memory and storage.
func (st *Store) CleanupExpired(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	st.mu.Lock()
	var expired []string
	for id, e := range st.sessions {
		e.mu.Lock()
		if e.session.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	st.mu.Unlock()

	for _, id := range expired {
		st.Delete(id)
	}
	return len(expired)
}

func (st *Store) persist(sess *Session) error {
	path := append(append([]string(nil), storagePath...), sess.ID)
	return st.storage.Put(context.Background(), path, sess)
}
