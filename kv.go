package herald

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// KV is the persistent key-value collaborator. The engine only ever stores
// the watermark in it, but the interface stays generic so platforms can
// plug in whatever storage they have.
type KV interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	// Set stores the value, overwriting any previous one.
	Set(key, value string) error
}

// FileKV is a JSON file-backed KV store kept under the state directory.
type FileKV struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// NewFileKV opens (or creates) a KV file at path. A corrupt or unreadable
// file is treated as empty rather than fatal; losing the watermark only
// means already-seen notifications get re-surfaced once.
func NewFileKV(path string) (*FileKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	kv := &FileKV{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kv, nil
	}
	if err != nil {
		logrus.Warnf("⚠️ could not read state file %s, starting fresh: %v", path, err)
		return kv, nil
	}
	if err := json.Unmarshal(data, &kv.values); err != nil {
		logrus.Warnf("⚠️ state file %s is corrupt, starting fresh: %v", path, err)
		kv.values = make(map[string]string)
	}
	return kv, nil
}

// Get returns the stored value for key.
func (f *FileKV) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, present := f.values[key]
	return value, present, nil
}

// Set stores the value and rewrites the file. The write goes through a temp
// file and rename so a crash mid-write can't corrupt the previous state.
func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = value

	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
