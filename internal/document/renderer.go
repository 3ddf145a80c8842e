package document

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PageOptions controls the paper format of a rendered document. Sizes are in
// inches, matching the DevTools printing API.
type PageOptions struct {
	PaperWidth      float64
	PaperHeight     float64
	MarginTop       float64
	MarginBottom    float64
	MarginLeft      float64
	MarginRight     float64
	Landscape       bool
	PrintBackground bool
}

// A4 returns portrait A4 options with print margins.
func A4() PageOptions {
	return PageOptions{
		PaperWidth:      8.27,
		PaperHeight:     11.69,
		MarginTop:       0.4,
		MarginBottom:    0.4,
		MarginLeft:      0.4,
		MarginRight:     0.4,
		PrintBackground: true,
	}
}

// Renderer converts an HTML page into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html string, opts PageOptions) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, html string, opts PageOptions) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, html string, opts PageOptions) ([]byte, error) {
	return f(ctx, html, opts)
}

// ChromeOptions configures the headless browser used by ChromeRenderer.
type ChromeOptions struct {
	// ExecPath overrides browser discovery when set.
	ExecPath string
	// Timeout bounds a single render including browser start-up.
	Timeout time.Duration
	// NoSandbox disables the Chrome sandbox, required in most containers.
	NoSandbox bool
}

// ChromeRenderer prints HTML to PDF with a headless Chrome process started
// for each document and torn down when the document is done.
type ChromeRenderer struct {
	opts ChromeOptions
}

// NewChromeRenderer constructs a ChromeRenderer.
func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &ChromeRenderer{opts: opts}
}

// Render starts a browser, loads html into a blank page and prints it.
func (r *ChromeRenderer) Render(ctx context.Context, html string, opts PageOptions) ([]byte, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.DisableGPU)
	if r.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ExecPath))
	}
	if r.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancelTimeout()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPaperWidth(opts.PaperWidth).
				WithPaperHeight(opts.PaperHeight).
				WithMarginTop(opts.MarginTop).
				WithMarginBottom(opts.MarginBottom).
				WithMarginLeft(opts.MarginLeft).
				WithMarginRight(opts.MarginRight).
				WithLandscape(opts.Landscape).
				WithPrintBackground(opts.PrintBackground).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrRender)
	}
	return pdf, nil
}
