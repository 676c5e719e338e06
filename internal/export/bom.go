package export

import (
	"bufio"
	"io"
)

// newBOMReader strips a leading UTF-8 byte-order mark if present. Exports
// from this system and from spreadsheet tools both carry one.
func newBOMReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
