// Package loader materializes the engine's shared data — schema and
// config documents plus binary dictionary tables — into the data
// directory before engine initialization.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"rimebridge/internal/logging"
)

// DefaultFiles is the deployment set fetched when the caller supplies
// no override: the default config, the schema, its source dictionary
// and the three precompiled tables (syllable table, prefix index,
// reverse lookup).
var DefaultFiles = []string{
	"default.yaml",
	"luna_pinyin.schema.yaml",
	"luna_pinyin.dict.yaml",
	"luna_pinyin.table.bin",
	"luna_pinyin.prism.bin",
	"luna_pinyin.reverse.bin",
}

// DataLoadError reports which resource could not be materialized.
// Initialization fails with it, and is retryable as a whole: partial
// sibling writes are not rolled back, a retry simply overwrites.
type DataLoadError struct {
	Resource string
	Err      error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load data %q: %v", e.Resource, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// Loader fetches data blobs over HTTP.
type Loader struct {
	client *http.Client
	log    *logging.Logger
}

// New creates a loader. A nil client gets a default with the given
// timeout applied per request via context deadlines.
func New(client *http.Client, log *logging.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = logging.Default()
	}
	return &Loader{client: client, log: log.WithComponent("loader")}
}

// Fetch downloads every named file from prefix into destDir. Fetches
// run concurrently; the first failure cancels the rest and is returned
// as a *DataLoadError naming the resource.
func (l *Loader) Fetch(ctx context.Context, prefix string, files []string, destDir string) error {
	if len(files) == 0 {
		files = DefaultFiles
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return &DataLoadError{Resource: destDir, Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr *DataLoadError
	)
	fail := func(name string, err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = &DataLoadError{Resource: name, Err: err}
			cancel()
		}
		mu.Unlock()
	}

	for _, name := range files {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := l.fetchOne(ctx, prefix, name, destDir); err != nil {
				fail(name, err)
			}
		}(name)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	l.log.Info("data deployed", "files", len(files), "dir", destDir)
	return nil
}

// fetchOne downloads one resource and writes it to destDir. Text
// resources must be well-formed YAML before they are written, so a
// truncated download cannot poison the engine's deployment.
func (l *Loader) fetchOne(ctx context.Context, prefix, name, destDir string) error {
	url := strings.TrimSuffix(prefix, "/") + "/" + path.Clean(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if isTextResource(name) {
		var doc any
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return fmt.Errorf("malformed document: %w", err)
		}
	}

	dst := filepath.Join(destDir, filepath.FromSlash(path.Clean(name)))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, content, 0644); err != nil {
		return err
	}
	l.log.Debug("resource deployed", "name", name, "bytes", len(content))
	return nil
}

// isTextResource reports whether a data file is a YAML document rather
// than an opaque binary table.
func isTextResource(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".txt":
		return true
	}
	return false
}
