package memo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// RenderCache stores rendered HTML keyed by a hash of the renderer input.
type RenderCache interface {
	CachedHTML(ctx context.Context, key string) (string, bool, error)
	StoreMemo(ctx context.Context, m Memo, key string) error
	PruneMemos(ctx context.Context, keep []string) (int, error)
}

type Options struct {
	Root     string
	Assets   AssetLookup
	Renderer *Renderer
	Cache    RenderCache
	Location *time.Location
	Now      func() time.Time
	Workers  int
	Logger   *slog.Logger
}

// Repository is an immutable, slug-ordered snapshot of all memos.
type Repository struct {
	memos  []Memo
	bySlug map[string]int
	tags   []string
}

// NewRepository indexes memos and orders them by slug, descending.
func NewRepository(memos []Memo) *Repository {
	sorted := slices.Clone(memos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Slug > sorted[j].Slug
	})
	r := &Repository{
		memos:  sorted,
		bySlug: make(map[string]int, len(sorted)),
	}
	tagSet := map[string]struct{}{}
	for i, m := range sorted {
		r.bySlug[m.Slug] = i
		for _, t := range m.Tags {
			tagSet[t] = struct{}{}
		}
	}
	r.tags = make([]string, 0, len(tagSet))
	for t := range tagSet {
		r.tags = append(r.tags, t)
	}
	sort.Strings(r.tags)
	return r
}

// Load discovers and renders every memo under opts.Root.
func Load(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	sources, err := Discover(opts.Root)
	if err != nil {
		return nil, err
	}
	now := opts.Now()
	built := make([]*Memo, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, src := range sources {
		g.Go(func() error {
			m, err := buildMemo(gctx, src, opts, now)
			if err != nil {
				return fmt.Errorf("memo %s: %w", src.Path, err)
			}
			built[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	memos := make([]Memo, 0, len(built))
	keep := make([]string, 0, len(built))
	for _, m := range built {
		if m == nil {
			continue
		}
		memos = append(memos, *m)
		keep = append(keep, m.Path)
	}
	if opts.Cache != nil {
		if removed, err := opts.Cache.PruneMemos(ctx, keep); err != nil {
			opts.Logger.Warn("render cache prune failed", "err", err)
		} else if removed > 0 {
			opts.Logger.Debug("render cache pruned", "removed", removed)
		}
	}
	opts.Logger.Info("memos loaded", "root", opts.Root, "count", len(memos), "skipped", len(sources)-len(memos))
	return NewRepository(memos), nil
}

// buildMemo returns nil for drafts.
func buildMemo(ctx context.Context, src Source, opts Options, now time.Time) (*Memo, error) {
	body, fm := splitSource(src, opts.Logger)
	if fm.Draft {
		opts.Logger.Debug("memo draft skipped", "path", src.Path)
		return nil, nil
	}

	tags := ExtractTags(body)
	processed := ResolveAssets(body, src.Path, opts.Assets)
	processed = LinkifyTags(processed)

	m := &Memo{
		Slug:  src.Slug,
		Path:  src.Path,
		Title: fm.Title,
		Date:  ParseSlugDate(src.Slug, opts.Location, now),
		Tags:  tags,
	}
	key := renderKey(opts.Renderer.Version(), processed)
	if opts.Cache != nil {
		html, ok, err := opts.Cache.CachedHTML(ctx, key)
		if err != nil {
			opts.Logger.Warn("render cache lookup failed", "path", src.Path, "err", err)
		} else if ok {
			m.Content = html
			return m, nil
		}
	}

	html, err := opts.Renderer.Render(processed)
	if err != nil {
		return nil, err
	}
	m.Content = html
	if opts.Cache != nil {
		if err := opts.Cache.StoreMemo(ctx, *m, key); err != nil {
			opts.Logger.Warn("render cache store failed", "path", src.Path, "err", err)
		}
	}
	return m, nil
}

func renderKey(version, markdown string) string {
	sum := sha256.Sum256([]byte(version + "\x00" + markdown))
	return hex.EncodeToString(sum[:])
}

// ListAll returns every memo ordered by slug, descending.
func (r *Repository) ListAll() []Memo {
	return slices.Clone(r.memos)
}

// GetBySlug reports false for unknown slugs.
func (r *Repository) GetBySlug(slug string) (Memo, bool) {
	i, ok := r.bySlug[slug]
	if !ok {
		return Memo{}, false
	}
	return r.memos[i], true
}

// Tags returns every tag in use, sorted ascending.
func (r *Repository) Tags() []string {
	return slices.Clone(r.tags)
}

func (r *Repository) Len() int {
	return len(r.memos)
}
