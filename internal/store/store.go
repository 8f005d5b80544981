// Package store persists campaign documents as JSON files on disk.
//
// Layout under the store root:
//
//	campaign_<id>/metadata.json
//	campaign_<id>/vault/<type>_<id>.json
//	campaign_<id>/sessions/session_<NN>_<id>.json
//
// Every write replaces the whole document (temp file + rename); there is no
// cross-file transaction.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-ports/lazyvault/internal/models"
)

const (
	campaignPrefix = "campaign_"
	metadataFile   = "metadata.json"
	vaultDirName   = "vault"
	sessionsDir    = "sessions"
	jsonExt        = ".json"
)

// Store is rooted at the directory that holds the campaign_* directories.
type Store struct {
	Root string
}

// New returns a Store rooted at root. The directory is created lazily.
func New(root string) *Store {
	return &Store{Root: root}
}

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

// CampaignDir returns the directory owning everything for campaignID.
func (s *Store) CampaignDir(campaignID string) string {
	return filepath.Join(s.Root, campaignPrefix+campaignID)
}

// MetadataPath returns the campaign metadata document path.
func (s *Store) MetadataPath(campaignID string) string {
	return filepath.Join(s.CampaignDir(campaignID), metadataFile)
}

// VaultDir returns the directory holding the campaign's vault items.
func (s *Store) VaultDir(campaignID string) string {
	return filepath.Join(s.CampaignDir(campaignID), vaultDirName)
}

// SessionsDir returns the directory holding the campaign's sessions.
func (s *Store) SessionsDir(campaignID string) string {
	return filepath.Join(s.CampaignDir(campaignID), sessionsDir)
}

// EnsureCampaign creates the campaign directory with its vault and sessions
// subdirectories.
func (s *Store) EnsureCampaign(campaignID string) error {
	for _, dir := range []string{s.VaultDir(campaignID), s.SessionsDir(campaignID)} {
		if err := EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// CampaignExists reports whether the campaign metadata document exists.
func (s *Store) CampaignExists(campaignID string) bool {
	_, err := os.Stat(s.MetadataPath(campaignID))
	return err == nil
}

// ListCampaignIDs returns the IDs of every campaign_* directory under Root
// that holds a metadata document, sorted.
func (s *Store) ListCampaignIDs() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return make([]string, 0), nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "list", Path: s.Root, Err: err}
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), campaignPrefix) {
			continue
		}
		id := strings.TrimPrefix(e.Name(), campaignPrefix)
		if s.CampaignExists(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RemoveCampaign deletes the whole campaign directory.
// Returns false when it did not exist.
func (s *Store) RemoveCampaign(campaignID string) (bool, error) {
	dir := s.CampaignDir(campaignID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, &models.StorageError{Op: "delete", Path: dir, Err: err}
	}
	return true, nil
}

// unsafeTypeChars matches characters that must not reach a filename.
var unsafeTypeChars = regexp.MustCompile(`[/\\:\x00]+`)

// ItemFilename returns "<type>_<id>.json". The type is used verbatim except
// for path separators, which are replaced so a type can never escape the
// vault directory.
func ItemFilename(itemType, id string) string {
	t := unsafeTypeChars.ReplaceAllString(itemType, "-")
	if t == "." || t == ".." {
		t = "item"
	}
	return t + "_" + id + jsonExt
}

// SessionFilename returns "session_<NN>_<id>.json".
func SessionFilename(number int, id string) string {
	return fmt.Sprintf("session_%02d_%s%s", number, id, jsonExt)
}

// SessionNumberFromFilename extracts NN from "session_<NN>_<id>.json".
func SessionNumberFromFilename(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "session_")
	if !ok {
		return 0, false
	}
	digits, _, ok := strings.Cut(rest, "_")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IDFromFilename extracts the record ID from "<anything>_<id>.json".
func IDFromFilename(name string) (string, bool) {
	if !strings.HasSuffix(name, jsonExt) {
		return "", false
	}
	base := strings.TrimSuffix(name, jsonExt)
	i := strings.LastIndex(base, "_")
	if i < 0 || i == len(base)-1 {
		return "", false
	}
	return base[i+1:], true
}

// ---------------------------------------------------------------------------
// Document primitives
// ---------------------------------------------------------------------------

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &models.StorageError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// LoadJSON decodes the document at path into v.
// Returns (false, nil) when the file does not exist.
func LoadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &models.StorageError{Op: "load", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &models.StorageError{Op: "decode", Path: path, Err: err}
	}
	return true, nil
}

// SaveJSON replaces the document at path with v. The new content is written
// to a sibling temp file and renamed over the target.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &models.StorageError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 -- campaign documents do not contain secrets
		return &models.StorageError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &models.StorageError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// ListJSON returns the *.json filenames in dir in directory order.
// A missing directory yields an empty slice.
func ListJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return make([]string, 0), nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "list", Path: dir, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), jsonExt) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Remove deletes the file at path. Returns false when it did not exist.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &models.StorageError{Op: "delete", Path: path, Err: err}
	}
	return true, nil
}
