package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
)

// Repository finds curricula by exam ID.
type Repository interface {
	FindByID(ctx context.Context, examID string) (*Curriculum, error)
}

// Loader loads and caches exam notice YAML files from the filesystem.
type Loader struct {
	rootDir     string
	curriculums map[string]Curriculum
	mu          sync.RWMutex
}

// NewLoader creates a new curriculum loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:     rootDir,
		curriculums: make(map[string]Curriculum),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "exams", len(l.curriculums))
	return l, nil
}

// FindByID returns the curriculum for an exam ID.
func (l *Loader) FindByID(_ context.Context, examID string) (*Curriculum, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.curriculums[examID]
	if !ok {
		return nil, fmt.Errorf("curriculum %q: %w", examID, apperr.ErrNotFound)
	}
	return &c, nil
}

// IDs returns the loaded exam IDs in sorted order.
func (l *Loader) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.curriculums))
	for id := range l.curriculums {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadCurriculum(path, info)
		}
		return nil
	})
}

func (l *Loader) loadCurriculum(path string, info os.FileInfo) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Warn("skipping invalid curriculum YAML", "path", path, "error", err)
		return nil
	}
	if id, _ := doc["id"].(string); id == "" {
		return nil // Not a curriculum file
	}
	if err := ValidateDocument(doc); err != nil {
		slog.Warn("skipping curriculum failing schema", "path", path, "error", err)
		return nil
	}

	var c Curriculum
	if err := yaml.Unmarshal(data, &c); err != nil {
		slog.Warn("skipping invalid curriculum YAML", "path", path, "error", err)
		return nil
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = info.ModTime().UTC()
	}

	l.mu.Lock()
	l.curriculums[c.ID] = c
	l.mu.Unlock()

	return nil
}

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	curriculums map[string]Curriculum
	mu          sync.RWMutex
}

// NewMemoryRepository creates a repository holding the given curricula.
func NewMemoryRepository(cs ...Curriculum) *MemoryRepository {
	r := &MemoryRepository{curriculums: make(map[string]Curriculum)}
	for _, c := range cs {
		r.curriculums[c.ID] = c
	}
	return r
}

// Put stores or replaces a curriculum.
func (r *MemoryRepository) Put(c Curriculum) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.curriculums[c.ID] = c
}

func (r *MemoryRepository) FindByID(_ context.Context, examID string) (*Curriculum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.curriculums[examID]
	if !ok {
		return nil, fmt.Errorf("curriculum %q: %w", examID, apperr.ErrNotFound)
	}
	return &c, nil
}
