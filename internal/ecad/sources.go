package ecad

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
)

// SourcesFileName is the companion listing in every measurement directory.
const SourcesFileName = "sources.txt"

// SourceInfo is one row of sources.txt.
type SourceInfo struct {
	ElementType string
	Participant string
}

// SourceIndex maps source id to its sources.txt row.
type SourceIndex map[int]SourceInfo

// LoadSourceIndex reads the sources.txt file in dir.
func LoadSourceIndex(dir string) (SourceIndex, error) {
	path := filepath.Join(dir, SourcesFileName)
	tf, err := openText(path, true, sourcesHeaderLine)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer tf.Close()

	r, cols, err := tf.csv()
	if err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	idx, err := columns(cols, "SOUID", "ELEID", "PARNAME")
	if err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}

	out := make(SourceIndex)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sources file: %w", err)
		}
		souid, err := strconv.Atoi(field(rec, idx[0]))
		if err != nil {
			continue
		}
		if _, dup := out[souid]; dup {
			continue
		}
		out[souid] = SourceInfo{
			ElementType: field(rec, idx[1]),
			Participant: field(rec, idx[2]),
		}
	}
	return out, nil
}
