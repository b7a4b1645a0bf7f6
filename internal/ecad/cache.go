package ecad

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// CacheSchemaVersion changes whenever the cached Collection layout does.
const CacheSchemaVersion = 1

const cacheDateLayout = "2006_01_02"

// ErrStaleCache reports a cache written for another schema or publish date.
var ErrStaleCache = errors.New("stale source cache")

type cacheEnvelope struct {
	SchemaVersion int         `json:"schema_version"`
	PublishDate   string      `json:"publish_date"`
	Collection    *Collection `json:"collection"`
}

// CachePath returns <dir>/<YYYY_MM_DD>_<name> for a publish date.
func CachePath(dir string, publishDate time.Time, name string) string {
	return filepath.Join(dir, publishDate.Format(cacheDateLayout)+"_"+name)
}

// SaveCache writes coll as gzip-compressed JSON. The file is written next to
// path and renamed into place.
func SaveCache(path string, coll *Collection, publishDate time.Time) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := gzip.NewWriter(tmp)
	env := cacheEnvelope{
		SchemaVersion: CacheSchemaVersion,
		PublishDate:   publishDate.Format(cacheDateLayout),
		Collection:    coll,
	}
	if err = json.NewEncoder(zw).Encode(env); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("compress cache: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// LoadCache reads a collection saved by SaveCache. It returns ErrStaleCache
// when the schema version or publish date differ, and an error wrapping
// os.ErrNotExist when there is no cache.
func LoadCache(path string, publishDate time.Time) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress cache: %w", err)
	}
	defer zr.Close()

	var env cacheEnvelope
	if err := json.NewDecoder(zr).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if env.SchemaVersion != CacheSchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrStaleCache, env.SchemaVersion, CacheSchemaVersion)
	}
	if want := publishDate.Format(cacheDateLayout); env.PublishDate != want {
		return nil, fmt.Errorf("%w: publish date %s, want %s", ErrStaleCache, env.PublishDate, want)
	}
	if env.Collection == nil {
		return nil, fmt.Errorf("%w: empty collection", ErrStaleCache)
	}
	if env.Collection.Stations == nil {
		env.Collection.Stations = make(map[int]map[string]*SourceFile)
	}
	return env.Collection, nil
}
