// Package ingest reads tabular files into frames.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

// Options controls how a file is read.
type Options struct {
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffed from the header line.
	Delimiter rune
	// NAValues are read as missing. nil means frame.DefaultNAValues.
	NAValues []string
	// Sheet selects an XLSX sheet by name; SheetIndex (1-based) is used when empty.
	Sheet      string
	SheetIndex int
	// Table selects an HTML table by 0-based position.
	Table int
}

// Loader reads one family of formats.
type Loader interface {
	CanLoad(filename string) bool
	Load(r io.Reader, filename string, opt Options) (*frame.Frame, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates no loader accepts the file name.
var ErrUnsupported = errors.New("unsupported file format")

// ErrUnreadable wraps every loader failure: the input had a supported
// extension but could not be parsed.
var ErrUnreadable = errors.New("unreadable dataset")

// LoadFile opens path and reads it with the loader matching its extension.
func LoadFile(path string, opt Options) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return Load(f, filepath.Base(path), opt)
}

// Load reads r with the loader matching filename.
func Load(r io.Reader, filename string, opt Options) (*frame.Frame, error) {
	for _, l := range registry {
		if l.CanLoad(filename) {
			fr, err := l.Load(r, filename, opt)
			if err != nil {
				return nil, fmt.Errorf("%w: load %s: %w", ErrUnreadable, filename, err)
			}
			return fr, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
}

// Supported reports whether some loader accepts filename.
func Supported(filename string) bool {
	for _, l := range registry {
		if l.CanLoad(filename) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
	Register(htmlLoader{})
}

// toFrame splits rows into header and records and applies MaxRows.
func toFrame(rows [][]string, opt Options) *frame.Frame {
	if len(rows) == 0 {
		return &frame.Frame{}
	}
	header := rows[0]
	records := rows[1:]
	if opt.MaxRows > 0 && len(records) > opt.MaxRows {
		records = records[:opt.MaxRows]
	}
	return frame.FromRecords(header, records, opt.NAValues)
}
