package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	manifestName    = "sessions.yaml"
	manifestVersion = "1.0"
	recordExt       = ".json"
)

// SessionStore owns the durable session records under one directory.
// Each session is stored as <dir>/<id>.json and indexed in <dir>/sessions.yaml.
type SessionStore struct {
	dir      string
	autoSave bool
	now      func() time.Time
}

// StoreOption configures a SessionStore
type StoreOption func(*SessionStore)

// WithAutoSave controls whether AddMessage and UpdateSessionStatus persist immediately
func WithAutoSave(enabled bool) StoreOption {
	return func(s *SessionStore) { s.autoSave = enabled }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

// IndexMetadata describes the manifest itself
type IndexMetadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// SessionIndex is the YAML manifest of all sessions
type SessionIndex struct {
	Sessions []SessionSummary `yaml:"sessions"`
	Metadata IndexMetadata    `yaml:"metadata"`
}

// NewSessionStore creates a store rooted at dir. Auto-save is on by default.
func NewSessionStore(dir string, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		dir:      dir,
		autoSave: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the storage directory
func (s *SessionStore) Dir() string {
	return s.dir
}

// ManifestPath returns the path to the session manifest YAML file
func (s *SessionStore) ManifestPath() string {
	return filepath.Join(s.dir, manifestName)
}

// SessionPath returns the path to a session's record file
func (s *SessionStore) SessionPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// ValidateSessionID rejects ids that cannot be used as a file name.
func ValidateSessionID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidSessionID, id)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q must not start with a dot", ErrInvalidSessionID, id)
	}
	return nil
}

func (s *SessionStore) ensureDir() error {
	return os.MkdirAll(s.dir, 0755)
}

// CreateSession creates and persists a new empty session. An existing record
// with the same id is replaced.
func (s *SessionStore) CreateSession(id, title string, status Status) (*Session, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := s.now()
	session := &Session{
		ID:        id,
		Title:     title,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
		Metadata:  map[string]interface{}{},
	}

	if err := s.persist(session); err != nil {
		return nil, err
	}

	Logger().Info().Str("session", id).Msg("Created session")
	return session, nil
}

// LoadSession reads a session record. A missing or unreadable record yields ErrSessionNotFound.
func (s *SessionStore) LoadSession(id string) (*Session, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}

	path := s.SessionPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			LogWarn("Failed to read session %s: %v", id, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		LogWarn("Session record %s is corrupt: %v", path, err)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if session.ID == "" {
		session.ID = id
	}
	if session.Messages == nil {
		session.Messages = []Message{}
	}

	LogDebug("Loaded session %s (%d messages)", id, len(session.Messages))
	return &session, nil
}

// SaveSession refreshes updated_at and writes the full record.
// updated_at never moves backwards.
func (s *SessionStore) SaveSession(session *Session) error {
	if now := s.now(); now.After(session.UpdatedAt) {
		session.UpdatedAt = now
	}
	return s.persist(session)
}

func (s *SessionStore) persist(session *Session) error {
	if err := ValidateSessionID(session.ID); err != nil {
		return err
	}

	path := s.SessionPath(session.ID)
	if err := s.ensureDir(); err != nil {
		return s.storageFailure("write", path, err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return s.storageFailure("write", path, fmt.Errorf("failed to marshal session: %w", err))
	}
	if err := writeFileAtomic(path, data); err != nil {
		return s.storageFailure("write", path, err)
	}

	if err := s.upsertIndex(session.Summary()); err != nil {
		// The record is authoritative; Reindex repairs the manifest.
		LogWarn("Failed to update session manifest: %v", err)
	}

	LogDebug("Saved session %s", session.ID)
	return nil
}

func (s *SessionStore) storageFailure(op, path string, err error) error {
	se := &StorageError{Path: path, Op: op, Err: err}
	LogError("%v", se)
	return se
}

// AddMessage appends a message and saves when auto-save is enabled.
func (s *SessionStore) AddMessage(session *Session, role Role, content string, metadata *MessageMetadata) (*Session, error) {
	if role != RoleUser && role != RoleAssistant {
		return session, fmt.Errorf("invalid message role %q", role)
	}

	session.Messages = append(session.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		Metadata:  metadata,
	})

	if s.autoSave {
		return session, s.SaveSession(session)
	}
	return session, nil
}

// UpdateSessionStatus sets the status and saves when auto-save is enabled.
func (s *SessionStore) UpdateSessionStatus(session *Session, status Status) (*Session, error) {
	if !status.Valid() {
		return session, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	session.Status = status
	Logger().Info().Str("session", session.ID).Str("status", string(status)).Msg("Updated session status")

	if s.autoSave {
		return session, s.SaveSession(session)
	}
	return session, nil
}

// ClearMessages empties the message history and saves.
func (s *SessionStore) ClearMessages(session *Session) (*Session, error) {
	session.Messages = []Message{}
	return session, s.SaveSession(session)
}

// ListSessions returns summaries ordered by updated_at, newest first.
// The record files are read directly; records that cannot be read are
// skipped. A manifest that disagrees with the records is rewritten.
func (s *SessionStore) ListSessions() ([]SessionSummary, error) {
	summaries, err := s.scanRecords()
	if err != nil {
		return nil, err
	}

	s.syncIndex(summaries)
	sortSummaries(summaries)
	return summaries, nil
}

// DeleteSession removes a session record and reports whether one existed.
func (s *SessionStore) DeleteSession(id string) (bool, error) {
	if err := ValidateSessionID(id); err != nil {
		return false, err
	}

	path := s.SessionPath(id)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, s.storageFailure("delete", path, err)
	}

	if err := s.removeFromIndex(id); err != nil {
		LogWarn("Failed to update session manifest: %v", err)
	}

	Logger().Info().Str("session", id).Msg("Deleted session")
	return true, nil
}

// CleanupOldSessions deletes every session last updated before now minus days.
func (s *SessionStore) CleanupOldSessions(days int) (int, error) {
	if days < 0 {
		return 0, fmt.Errorf("days must not be negative, got %d", days)
	}

	summaries, err := s.ListSessions()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	removed := 0
	for _, summary := range summaries {
		if !summary.UpdatedAt.Before(cutoff) {
			continue
		}
		ok, err := s.DeleteSession(summary.ID)
		if err != nil {
			LogWarn("Failed to delete expired session %s: %v", summary.ID, err)
			continue
		}
		if ok {
			removed++
		}
	}

	LogInfo("Cleaned up %d expired sessions", removed)
	return removed, nil
}

// Reindex rebuilds the manifest from the records on disk and returns the number indexed.
func (s *SessionStore) Reindex() (int, error) {
	index, err := s.rebuildIndex()
	if err != nil {
		return 0, err
	}
	return len(index.Sessions), nil
}

// LoadIndex loads the session manifest
func (s *SessionStore) LoadIndex() (*SessionIndex, error) {
	data, err := os.ReadFile(s.ManifestPath())
	if err != nil {
		return nil, err
	}

	var index SessionIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}

	return &index, nil
}

// SaveIndex saves the session manifest
func (s *SessionStore) SaveIndex(index *SessionIndex) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	index.Metadata.Version = manifestVersion
	index.Metadata.UpdatedAt = s.now()
	sortSummaries(index.Sessions)

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	return writeFileAtomic(s.ManifestPath(), data)
}

func (s *SessionStore) upsertIndex(summary SessionSummary) error {
	index, err := s.LoadIndex()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		index = &SessionIndex{}
	}

	found := false
	for i, entry := range index.Sessions {
		if entry.ID == summary.ID {
			index.Sessions[i] = summary
			found = true
			break
		}
	}
	if !found {
		index.Sessions = append(index.Sessions, summary)
	}

	return s.SaveIndex(index)
}

func (s *SessionStore) removeFromIndex(id string) error {
	index, err := s.LoadIndex()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	kept := index.Sessions[:0]
	for _, entry := range index.Sessions {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	index.Sessions = kept

	return s.SaveIndex(index)
}

func (s *SessionStore) rebuildIndex() (*SessionIndex, error) {
	summaries, err := s.scanRecords()
	if err != nil {
		return nil, err
	}

	index := &SessionIndex{Sessions: summaries}
	if err := s.SaveIndex(index); err != nil {
		return nil, s.storageFailure("write", s.ManifestPath(), err)
	}

	LogDebug("Rebuilt session manifest with %d entries", len(index.Sessions))
	return index, nil
}

// scanRecords loads a summary for every readable record file.
func (s *SessionStore) scanRecords() ([]SessionSummary, error) {
	summaries := []SessionSummary{}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return summaries, nil
		}
		return nil, s.storageFailure("list", s.dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, recordExt)
		session, err := s.LoadSession(id)
		if err != nil {
			LogDebug("Skipping session %s: %v", id, err)
			continue
		}
		summaries = append(summaries, session.Summary())
	}
	return summaries, nil
}

// syncIndex rewrites the manifest when it does not match the records.
// Failures are logged and otherwise ignored.
func (s *SessionStore) syncIndex(summaries []SessionSummary) {
	index, err := s.LoadIndex()
	switch {
	case err == nil && indexMatches(index.Sessions, summaries):
		return
	case err == nil:
		LogDebug("Session manifest out of date, rewriting")
	case errors.Is(err, os.ErrNotExist):
		if len(summaries) == 0 {
			return
		}
	default:
		LogWarn("Session manifest unreadable, rebuilding: %v", err)
	}

	entries := make([]SessionSummary, len(summaries))
	copy(entries, summaries)
	if err := s.SaveIndex(&SessionIndex{Sessions: entries}); err != nil {
		LogWarn("Failed to update session manifest: %v", err)
	}
}

func indexMatches(entries, summaries []SessionSummary) bool {
	if len(entries) != len(summaries) {
		return false
	}
	byID := make(map[string]SessionSummary, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	for _, sum := range summaries {
		e, ok := byID[sum.ID]
		if !ok || !e.UpdatedAt.Equal(sum.UpdatedAt) || e.MessageCount != sum.MessageCount {
			return false
		}
	}
	return true
}

func sortSummaries(summaries []SessionSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
}

// writeFileAtomic writes data to a temp file in the same directory and renames
// it over path, so readers never observe a partial record.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
