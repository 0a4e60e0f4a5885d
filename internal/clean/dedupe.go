package clean

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

// appendCanonical writes a kind-tagged, length-prefixed encoding of v so
// that distinct rows never share a byte sequence.
func appendCanonical(b []byte, v frame.Value) []byte {
	b = append(b, byte(v.Kind))
	var payload []byte
	switch v.Kind {
	case frame.Number:
		x := v.Num
		if x == 0 {
			x = 0 // fold -0
		}
		payload = strconv.AppendFloat(nil, x, 'g', -1, 64)
	case frame.Time:
		payload = v.Time.UTC().AppendFormat(nil, time.RFC3339Nano)
	case frame.Text:
		payload = []byte(v.Str)
	}
	b = binary.AppendUvarint(b, uint64(len(payload)))
	return append(b, payload...)
}

// RowFingerprint hashes the canonical encoding of a row.
func RowFingerprint(row []frame.Value) [sha256.Size]byte {
	var buf []byte
	for _, v := range row {
		buf = appendCanonical(buf, v)
	}
	return sha256.Sum256(buf)
}

// RemoveDuplicates drops rows identical to an earlier row across all
// columns. The first occurrence is kept and the remaining rows stay in
// order.
func RemoveDuplicates(f *frame.Frame, log *ChangeLog) (*frame.Frame, int) {
	rows := f.Rows()
	seen := make(map[[sha256.Size]byte]struct{}, rows)
	keep := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		fp := RowFingerprint(f.Row(i))
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		keep = append(keep, i)
	}
	out := &frame.Frame{Columns: make([]frame.Column, len(f.Columns))}
	for j, c := range f.Columns {
		cells := make([]frame.Value, len(keep))
		for k, i := range keep {
			cells[k] = c.Cells[i]
		}
		out.Columns[j] = frame.Column{Name: c.Name, Cells: cells}
	}
	removed := rows - len(keep)
	if removed > 0 {
		log.Addf("Removed %d exact duplicate rows", removed)
	} else {
		log.Addf("No exact duplicate rows found")
	}
	return out, removed
}
