package site

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moire/internal/assets"
	"moire/internal/memo"
)

// Content is one loaded snapshot of the memo tree and its images.
type Content struct {
	Repo   *memo.Repository
	Assets *assets.Bundle
}

// Loader turns the content directory into a Content snapshot.
type Loader struct {
	ContentPath string
	BasePath    string
	Renderer    *memo.Renderer
	Cache       memo.RenderCache
	Location    *time.Location
	Logger      *slog.Logger
}

func (l *Loader) Load(ctx context.Context) (*Content, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bundle, err := assets.Collect(l.ContentPath, l.BasePath+"/assets")
	if err != nil {
		return nil, err
	}
	opts := memo.Options{
		Root:     l.ContentPath,
		Assets:   bundle.Map(),
		Renderer: l.Renderer,
		Cache:    l.Cache,
		Location: l.Location,
		Logger:   logger,
	}
	repo, err := memo.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load memos: %w", err)
	}
	return &Content{Repo: repo, Assets: bundle}, nil
}
