package ecad

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/klauspost/compress/zip"
)

// PublishDateLayout is the DD-MM-YYYY form of ECA&D publish dates.
const PublishDateLayout = "02-01-2006"

var publishDateRe = regexp.MustCompile(`([0-3][0-9]-(0[1-9]|1[0-2])-[0-9]{4})`)

// PublishDate reads the first line of the marker at path and returns the
// publish date found in it. A zip archive, recognized by its content rather
// than its name, is searched for the entry named marker. It returns false when the path is missing or nothing matches.
func PublishDate(path, marker string) (string, bool) {
	line, err := firstLine(path, marker)
	if err != nil {
		return "", false
	}
	return ExtractDate(line)
}

// ExtractDate returns the first DD-MM-YYYY date in text.
func ExtractDate(text string) (string, bool) {
	m := publishDateRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParsePublishDate parses a DD-MM-YYYY date as UTC midnight.
func ParsePublishDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(PublishDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse publish date %q: %w", s, err)
	}
	return t, nil
}

// MarkerDate combines PublishDate and ParsePublishDate.
func MarkerDate(path, marker string) (time.Time, bool) {
	s, ok := PublishDate(path, marker)
	if !ok {
		return time.Time{}, false
	}
	t, err := ParsePublishDate(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var zipMagic = []byte("PK\x03\x04")

func firstLine(path, marker string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, _ := br.Peek(len(zipMagic)); !bytes.Equal(head, zipMagic) {
		return readFirstLine(br)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()
	for _, e := range zr.File {
		if e.Name != marker && filepath.Base(e.Name) != marker {
			continue
		}
		rc, err := e.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return readFirstLine(rc)
	}
	return "", fmt.Errorf("%s: entry %s not found", path, marker)
}

func readFirstLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}
