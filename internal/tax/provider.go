package tax

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"glidemoney/internal/cache"
	"glidemoney/internal/core"
)

//go:embed rates/*.yaml
var embeddedRates embed.FS

// RateTableProvider supplies a dated rate table for a jurisdiction.
// Implementations fail with core.ErrUnsupportedJurisdiction instead of
// falling back to another province or year.
type RateTableProvider interface {
	RateTable(year int, j core.Jurisdiction) (*RateTable, error)
}

// FileProvider reads rates/<year>.yaml, first from an optional override
// directory and then from the tables compiled into the binary. Parsed files
// are kept in an LRU cache so edits to the override directory are picked up
// after the TTL.
type FileProvider struct {
	override fs.FS
	files    *cache.LRUCache[*yearFile]
}

const (
	providerCacheSize = 8
	providerCacheTTL  = 10 * time.Minute
)

// NewFileProvider creates a provider. dir may be empty.
func NewFileProvider(dir string) *FileProvider {
	p := &FileProvider{files: cache.NewLRUCache[*yearFile](providerCacheSize, providerCacheTTL)}
	if dir != "" {
		p.override = os.DirFS(dir)
	}
	return p
}

// CleanExpired drops parsed files past their TTL. It lets a cache.Manager
// sweep the provider.
func (p *FileProvider) CleanExpired() int {
	return p.files.CleanExpired()
}

func (p *FileProvider) RateTable(year int, j core.Jurisdiction) (*RateTable, error) {
	if j == "" {
		return nil, core.ErrMissingJurisdiction
	}
	f, err := p.load(year)
	if err != nil {
		return nil, err
	}
	return f.table(j)
}

func (p *FileProvider) load(year int) (*yearFile, error) {
	key := strconv.Itoa(year)
	if f, ok := p.files.Get(key); ok {
		return f, nil
	}

	name := key + ".yaml"
	var (
		data []byte
		err  error
	)
	if p.override != nil {
		data, err = fs.ReadFile(p.override, name)
	}
	if p.override == nil || errors.Is(err, fs.ErrNotExist) {
		data, err = fs.ReadFile(embeddedRates, "rates/"+name)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no rate table for %d", core.ErrUnsupportedJurisdiction, year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table %s: %w", name, err)
	}

	f, err := parseYearFile(data)
	if err != nil {
		return nil, fmt.Errorf("rate table %s: %w", name, err)
	}
	if f.Year != year {
		return nil, fmt.Errorf("%w: %s declares year %d", core.ErrInvalidRateTable, name, f.Year)
	}
	p.files.Set(key, f)
	return f, nil
}

// Years lists every year with a rate table, override files included,
// in ascending order.
func (p *FileProvider) Years() ([]int, error) {
	seen := make(map[int]struct{})
	collect := func(fsys fs.FS, pattern string) error {
		names, err := fs.Glob(fsys, pattern)
		if err != nil {
			return err
		}
		for _, name := range names {
			y, err := strconv.Atoi(strings.TrimSuffix(path.Base(name), ".yaml"))
			if err != nil {
				continue
			}
			seen[y] = struct{}{}
		}
		return nil
	}
	if err := collect(embeddedRates, "rates/*.yaml"); err != nil {
		return nil, fmt.Errorf("failed to list embedded rate tables: %w", err)
	}
	if p.override != nil {
		if err := collect(p.override, "*.yaml"); err != nil {
			return nil, fmt.Errorf("failed to list rate tables: %w", err)
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	slices.Sort(years)
	return years, nil
}

// LatestYear returns the newest year with a rate table.
func (p *FileProvider) LatestYear() (int, error) {
	years, err := p.Years()
	if err != nil {
		return 0, err
	}
	if len(years) == 0 {
		return 0, fmt.Errorf("%w: no rate tables available", core.ErrUnsupportedJurisdiction)
	}
	return years[len(years)-1], nil
}

func parseYearFile(data []byte) (*yearFile, error) {
	var f yearFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRateTable, err)
	}
	return &f, nil
}

// StaticProvider serves tables held in memory, keyed by year and jurisdiction.
type StaticProvider struct {
	tables map[string]*RateTable
}

func NewStaticProvider(tables ...*RateTable) *StaticProvider {
	p := &StaticProvider{tables: make(map[string]*RateTable, len(tables))}
	for _, t := range tables {
		p.tables[staticKey(t.Year, t.Jurisdiction)] = t
	}
	return p
}

func (p *StaticProvider) RateTable(year int, j core.Jurisdiction) (*RateTable, error) {
	if j == "" {
		return nil, core.ErrMissingJurisdiction
	}
	t, ok := p.tables[staticKey(year, j)]
	if !ok {
		return nil, fmt.Errorf("%w: no %d rates for %s", core.ErrUnsupportedJurisdiction, year, j)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func staticKey(year int, j core.Jurisdiction) string {
	return strconv.Itoa(year) + "/" + string(j)
}
