package store

import (
	"errors"
	"fmt"
	"path"

	"github.com/hack-pad/hackpadfs"
	"github.com/microcosm-cc/bluemonday"
)

// SnapshotStore keeps sanitized HTML snapshots of web sources on a hackpadfs
// filesystem (IndexedDB in the browser, the OS or memory elsewhere). Each
// source lives at sources/web/<sourceID>.html.
type SnapshotStore struct {
	FS     hackpadfs.FS
	policy *bluemonday.Policy
}

const snapshotDir = "sources/web"

// NewSnapshotStore wraps fs. Content is sanitized with the user-generated
// content policy, which keeps ids and structure but drops scripts, styles and
// event handlers.
func NewSnapshotStore(fs hackpadfs.FS) *SnapshotStore {
	return &SnapshotStore{FS: fs, policy: bluemonday.UGCPolicy()}
}

func snapshotPath(sourceID string) (string, error) {
	if sourceID == "" || sourceID != path.Base(sourceID) || sourceID == "." || sourceID == ".." {
		return "", fmt.Errorf("store: invalid source id %q", sourceID)
	}
	return path.Join(snapshotDir, sourceID+".html"), nil
}

// Save sanitizes html and writes it as the snapshot of sourceID, replacing any
// previous one. It returns the sanitized content.
func (s *SnapshotStore) Save(sourceID, html string) (string, error) {
	p, err := snapshotPath(sourceID)
	if err != nil {
		return "", err
	}
	clean := s.policy.Sanitize(html)

	if err := hackpadfs.MkdirAll(s.FS, snapshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	if err := hackpadfs.WriteFullFile(s.FS, p, []byte(clean), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return clean, nil
}

// Load returns the snapshot of sourceID. ok is false when none was saved.
func (s *SnapshotStore) Load(sourceID string) (html string, ok bool, err error) {
	p, err := snapshotPath(sourceID)
	if err != nil {
		return "", false, err
	}
	data, err := hackpadfs.ReadFile(s.FS, p)
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return string(data), true, nil
}

// Delete removes the snapshot of sourceID. Missing snapshots are not an error.
func (s *SnapshotStore) Delete(sourceID string) error {
	p, err := snapshotPath(sourceID)
	if err != nil {
		return err
	}
	err = hackpadfs.Remove(s.FS, p)
	if err != nil && !errors.Is(err, hackpadfs.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
