package oracle

import (
	"encoding/hex"
	"io"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Digest is the 128-bit hash of a result set.
type Digest [16]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// cellEscaper escapes cells the way TabSeparated does, so separators inside
// a value cannot shift cell or row boundaries.
var cellEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`)

// canonicalRows returns the rows rendered as escaped tab-separated lines in
// sorted order, so that results differing only in row order compare equal.
// NULL cells are written as is.
func canonicalRows(res core.Result) []string {
	lines := make([]string, len(res.Rows))
	cells := make([]string, 0)
	for i, row := range res.Rows {
		cells = cells[:0]
		for _, cell := range row {
			if cell != core.NullText {
				cell = cellEscaper.Replace(cell)
			}
			cells = append(cells, cell)
		}
		lines[i] = strings.Join(cells, "\t")
	}
	slices.Sort(lines)
	return lines
}

// digest hashes the canonical text of res.
func digest(res core.Result) Digest {
	h := xxh3.New()
	for _, line := range canonicalRows(res) {
		_, _ = io.WriteString(h, line)
		_, _ = io.WriteString(h, "\n")
	}
	return h.Sum128().Bytes()
}
