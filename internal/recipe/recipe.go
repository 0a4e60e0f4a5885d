// Package recipe persists named step selections and type overrides.
package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
	"github.com/google/uuid"
)

const fileExt = ".json"

// ErrNotFound is returned when no recipe with the given name exists.
var ErrNotFound = errors.New("recipe not found")

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Recipe is a reusable cleaning configuration.
type Recipe struct {
	ID          string                      `json:"id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description,omitempty"`
	Steps       clean.Selection             `json:"steps"`
	Overrides   map[string]clean.ColumnType `json:"overrides,omitempty"`
	// Options replaces the configured heuristics when set.
	Options   *clean.Options `json:"options,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New constructs an in-memory recipe. Call Save to persist.
func New(name, description string, steps clean.Selection, overrides map[string]clean.ColumnType) (*Recipe, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid recipe name %q (letters, digits, '-' and '_' only)", name)
	}
	now := time.Now().UTC()
	return &Recipe{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Steps:       steps,
		Overrides:   overrides,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CleanOptions returns the recipe's options, or base when it has none.
func (r *Recipe) CleanOptions(base clean.Options) clean.Options {
	if r.Options != nil {
		return *r.Options
	}
	return base
}

// Validate checks names, overrides and embedded options.
func (r *Recipe) Validate() error {
	if !validName.MatchString(r.Name) {
		return fmt.Errorf("invalid recipe name %q", r.Name)
	}
	for col, t := range r.Overrides {
		if _, err := clean.ParseColumnType(string(t)); err != nil {
			return fmt.Errorf("override %q: %w", col, err)
		}
	}
	if r.Options != nil {
		if err := r.Options.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Save writes <dir>/<name>.json using atomic write.
func (r *Recipe) Save(dir string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	r.UpdatedAt = time.Now().UTC()
	data, err := utils.PrettyJSON(r)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(dir, r.Name+fileExt), data)
}

// Load reads the recipe called name from dir.
func Load(dir, name string) (*Recipe, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return loadFile(filepath.Join(dir, name+fileExt))
}

func loadFile(path string) (*Recipe, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), fileExt))
		}
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	var r Recipe
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse recipe %s: %w", filepath.Base(path), err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", filepath.Base(path), err)
	}
	return &r, nil
}

// List returns every readable recipe in dir sorted by name. A missing dir is
// an empty list; unreadable files are reported in the second return value.
func List(dir string) ([]*Recipe, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("read recipes dir: %w", err)}
	}
	var out []*Recipe
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		r, err := loadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, errs
}

// Delete removes the recipe called name from dir.
func Delete(dir, name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	err := os.Remove(filepath.Join(dir, name+fileExt))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}
