package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Artifact is a rendered document stored in the scratch directory. The
// caller removes it once the content has been delivered.
type Artifact struct {
	Path     string
	Filename string
	Size     int64
}

// Open opens the artifact for reading.
func (a Artifact) Open() (*os.File, error) {
	return os.Open(a.Path)
}

// Remove deletes the artifact, logging instead of failing when that is not
// possible.
func (a Artifact) Remove(logger *slog.Logger) {
	if a.Path == "" {
		return
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to remove rendered document", "path", a.Path, "error", err)
	}
}

// Pipeline turns documents into PDF artifacts.
type Pipeline struct {
	renderer   Renderer
	scratchDir string
	page       PageOptions
}

// NewPipeline constructs a Pipeline writing into scratchDir. An empty
// scratchDir uses the operating system temporary directory.
func NewPipeline(renderer Renderer, scratchDir string) *Pipeline {
	return &Pipeline{renderer: renderer, scratchDir: scratchDir, page: A4()}
}

// Render builds, renders and stores a document. No file is left behind when
// any step fails.
func (p *Pipeline) Render(ctx context.Context, doc Document) (Artifact, error) {
	if p == nil || p.renderer == nil {
		return Artifact{}, fmt.Errorf("%w: renderer not configured", ErrRender)
	}

	html, err := BuildHTML(doc)
	if err != nil {
		return Artifact{}, err
	}

	pdf, err := p.renderer.Render(ctx, html, p.page)
	if err != nil {
		if errors.Is(err, ErrRender) {
			return Artifact{}, err
		}
		return Artifact{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	dir := p.scratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("document: prepare scratch dir: %w", err)
	}

	file, err := os.CreateTemp(dir, "calendario-*.pdf")
	if err != nil {
		return Artifact{}, fmt.Errorf("document: create scratch file: %w", err)
	}
	path := file.Name()

	if _, err := file.Write(pdf); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return Artifact{}, fmt.Errorf("document: write scratch file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return Artifact{}, fmt.Errorf("document: close scratch file: %w", err)
	}

	return Artifact{
		Path:     filepath.Clean(path),
		Filename: doc.Filename(),
		Size:     int64(len(pdf)),
	}, nil
}
