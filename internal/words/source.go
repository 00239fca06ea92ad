package words

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"time"

	"dictation/internal/models"
)

const (
	maxListBytes       = 10 << 20
	httpRequestTimeout = 15 * time.Second
)

// Resolver maps a language and level to the locator of its word-list resource
type Resolver func(lang models.Language, level models.Level) string

// DefaultResolver lays word lists out as <lang>/index/<LEVEL>_<lang_code>_index.json
func DefaultResolver(lang models.Language, level models.Level) string {
	return path.Join(string(lang), "index", fmt.Sprintf("%s_%s_index.json", level, lang.FileCode()))
}

// Source loads the raw entries of one word list
type Source interface {
	Load(ctx context.Context, lang models.Language, level models.Level) ([]models.WordEntry, error)
}

// listDocument is the on-disk shape of a word list
type listDocument struct {
	Entries []models.WordEntry `json:"entries"`
	Index   map[string]int     `json:"index,omitempty"`
}

func decodeList(r io.Reader) ([]models.WordEntry, error) {
	var doc listDocument
	if err := json.NewDecoder(io.LimitReader(r, maxListBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedList, err)
	}
	if doc.Entries == nil {
		return nil, fmt.Errorf("%w: no entries array", ErrMalformedList)
	}
	return doc.Entries, nil
}

// FSSource reads word lists from a filesystem such as embedded assets or os.DirFS
type FSSource struct {
	fsys    fs.FS
	resolve Resolver
}

// NewFSSource creates a source over fsys. A nil resolver means DefaultResolver.
func NewFSSource(fsys fs.FS, resolve Resolver) *FSSource {
	if resolve == nil {
		resolve = DefaultResolver
	}
	return &FSSource{fsys: fsys, resolve: resolve}
}

// Load reads and decodes the list for lang and level
func (s *FSSource) Load(ctx context.Context, lang models.Language, level models.Level) ([]models.WordEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := s.resolve(lang, level)
	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	return decodeList(f)
}

// HTTPSource fetches word lists from a remote endpoint
type HTTPSource struct {
	base    *url.URL
	client  *http.Client
	resolve Resolver
}

// NewHTTPSource creates a source rooted at baseURL.
// A nil client gets a default with a request timeout; a nil resolver means DefaultResolver.
func NewHTTPSource(baseURL string, client *http.Client, resolve Resolver) (*HTTPSource, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: httpRequestTimeout}
	}
	if resolve == nil {
		resolve = DefaultResolver
	}
	return &HTTPSource{base: base, client: client, resolve: resolve}, nil
}

// Load fetches and decodes the list for lang and level
func (s *HTTPSource) Load(ctx context.Context, lang models.Language, level models.Level) ([]models.WordEntry, error) {
	target := s.base.JoinPath(s.resolve(lang, level))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status code: %d", target, resp.StatusCode)
	}

	return decodeList(resp.Body)
}
