package clean

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

// Rename maps one original label to its canonical form.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ErrNameCollision is returned under CollisionError when two labels
// canonicalize to the same name.
var ErrNameCollision = errors.New("column names collide after cleaning")

var (
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s\p{Z}]+`)
	spaceRe   = regexp.MustCompile(`[\s\p{Z}]+`)
)

// CanonicalName trims, lowercases, drops punctuation and symbols, and joins
// the remaining words with underscores. It is idempotent.
func CanonicalName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return spaceRe.ReplaceAllString(s, "_")
}

// CanonicalizeNames plans the rename of every label. Empty results become
// column_<n>. Under CollisionSuffix a later label that lands on a name
// already taken gets the first free _2, _3, ... suffix; the second return
// value describes each such case.
func CanonicalizeNames(names []string, policy CollisionPolicy) ([]Rename, []string, error) {
	out := make([]Rename, len(names))
	used := make(map[string]struct{}, len(names))
	var notes []string
	for i, name := range names {
		to := CanonicalName(name)
		if to == "" {
			to = fmt.Sprintf("column_%d", i+1)
		}
		if _, taken := used[to]; taken {
			if policy == CollisionError {
				return nil, nil, fmt.Errorf("%w: %q and an earlier column both become %q", ErrNameCollision, name, to)
			}
			base := to
			for k := 2; ; k++ {
				to = fmt.Sprintf("%s_%d", base, k)
				if _, taken := used[to]; !taken {
					break
				}
			}
			notes = append(notes, fmt.Sprintf("Renamed duplicate column '%s' to '%s' (name '%s' already taken)", name, to, base))
		}
		used[to] = struct{}{}
		out[i] = Rename{From: name, To: to}
	}
	return out, notes, nil
}

// RenameColumns canonicalizes every label of a copy of f and logs the
// before/after lists.
func RenameColumns(f *frame.Frame, policy CollisionPolicy, log *ChangeLog) (*frame.Frame, []Rename, error) {
	plan, notes, err := CanonicalizeNames(f.Names(), policy)
	if err != nil {
		return nil, nil, err
	}
	return applyRenames(f, plan, notes, log), plan, nil
}

func applyRenames(f *frame.Frame, plan []Rename, notes []string, log *ChangeLog) *frame.Frame {
	out := f.Clone()
	before := out.Names()
	for i := range out.Columns {
		out.Columns[i].Name = plan[i].To
	}
	log.Addf("Cleaned column names: %s -> %s", quoteList(before), quoteList(out.Names()))
	for _, n := range notes {
		log.Addf("%s", n)
	}
	return out
}

// renameIndex maps original names to new names. When an original label
// appears more than once the first occurrence wins.
func renameIndex(plan []Rename) map[string]string {
	m := make(map[string]string, len(plan))
	for _, r := range plan {
		if _, ok := m[r.From]; !ok {
			m[r.From] = r.To
		}
	}
	return m
}
