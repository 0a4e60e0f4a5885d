package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvLoader) Load(r io.Reader, filename string, opt Options) (*frame.Frame, error) {
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(filename), ".tsv") {
		opt.Delimiter = '\t'
	}
	return ReadCSV(r, opt)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a header line followed by records. Ragged records are padded
// or truncated to the header width.
func ReadCSV(r io.Reader, opt Options) (*frame.Frame, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = delim

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
		if opt.MaxRows > 0 && len(rows) > opt.MaxRows {
			break
		}
	}
	return toFrame(rows, opt), nil
}

// sniffDelimiter picks the candidate that occurs most often, outside quotes,
// on the first line of b. Comma wins ties and empty input.
func sniffDelimiter(b []byte) rune {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))
	quoted := false
	for _, c := range string(b) {
		if c == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[c]++
		}
	}
	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
