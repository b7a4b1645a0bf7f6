package ecad

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Header offsets of the ECA&D text files, counted in non-blank lines.
const (
	seriesHeaderLine   = 13
	stationsHeaderLine = 13
	elementsHeaderLine = 10
	sourcesHeaderLine  = 18
)

// textFile is an open ECA&D file positioned after its preamble.
type textFile struct {
	f  *os.File
	br *bufio.Reader
}

// openText opens path, decoding ISO-8859-1 when latin1 is set, and skips the
// first skip non-blank lines.
func openText(path string, latin1 bool, skip int) (*textFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = f
	if latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(f)
	}
	tf := &textFile{f: f, br: bufio.NewReader(r)}
	for skipped := 0; skipped < skip; {
		line, err := tf.readLine()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("skip preamble of %s: %w", path, err)
		}
		if strings.TrimSpace(line) != "" {
			skipped++
		}
	}
	return tf, nil
}

func (t *textFile) Close() error { return t.f.Close() }

// readLine returns the next line without its terminator. io.EOF is returned
// only when no bytes remain.
func (t *textFile) readLine() (string, error) {
	line, err := t.br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// csv returns a reader for the delimited table that follows the preamble,
// along with the trimmed header column positions.
func (t *textFile) csv() (*csv.Reader, map[string]int, error) {
	r := csv.NewReader(t.br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	return r, cols, nil
}

// columns resolves the positions of names in a header map.
func columns(cols map[string]int, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		idx, ok := cols[n]
		if !ok {
			return nil, fmt.Errorf("missing column %q", n)
		}
		out[i] = idx
	}
	return out, nil
}

// field returns the trimmed record value at idx, or "" when short.
func field(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// fixed returns the trimmed rune range [start, end) of line, clamped to its length.
func fixed(line []rune, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(string(line[start:end]))
}
