package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/brensch/primtree/expand"
)

// Manifest records which sweep configurations have already been written,
// so an interrupted sweep can be resumed. It is an append-only file with one
// key per line; a torn final line is ignored on the next open.
type Manifest struct {
	mu   sync.RWMutex
	path string
	file *os.File
	done map[string]struct{}
}

// ConfigKey identifies a sweep point by its expansion parameters.
func ConfigKey(cfg expand.Config, speed float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return fmt.Sprintf("dt=%s,h=%s,yaw=%s,k=%d,v=%s",
		f(cfg.DeltaTime), f(cfg.Horizon), f(cfg.YawStep), cfg.Branching, f(speed))
}

func OpenManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest path is required")
	}

	done := make(map[string]struct{})
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			key := strings.TrimSpace(scanner.Text())
			if key == "" {
				continue
			}
			done[key] = struct{}{}
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	return &Manifest{
		path: path,
		file: file,
		done: done,
	}, nil
}

func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

func (m *Manifest) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.done[key]
	return ok
}

func (m *Manifest) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.done)
}

// AddMany appends keys and syncs once. Keys already present are ignored.
func (m *Manifest) AddMany(keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return fmt.Errorf("manifest is closed")
	}

	added := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := m.done[key]; ok {
			continue
		}
		if _, err := m.file.WriteString(key + "\n"); err != nil {
			return fmt.Errorf("append manifest: %w", err)
		}
		m.done[key] = struct{}{}
		added++
	}

	if added == 0 {
		return nil
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("sync manifest: %w", err)
	}
	return nil
}
