// Package render drives a headless browser to produce a DOM snapshot and a
// viewport screenshot for a target URL.
package render

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Render failure classes.
var (
	ErrRenderTimeout = eris.New("render: timed out")
	ErrNavigation    = eris.New("render: navigation failed")
)

// Snapshot is the rendered output for one URL: the serialized DOM after
// load and a compressed raster of the initial viewport only. The viewport
// restriction bounds payload size sent to the scoring oracle.
type Snapshot struct {
	HTML       string
	Screenshot []byte
}

// Renderer produces a Snapshot for a URL.
type Renderer interface {
	Render(ctx context.Context, targetURL string) (*Snapshot, error)
}

// Options tunes the chromedp renderer.
type Options struct {
	// ViewportWidth/Height fix the desktop viewport. Defaults: 1440x900.
	ViewportWidth  int
	ViewportHeight int

	// Timeout is the hard upper bound on the whole render. Exceeding it is
	// a failure, never a partial-result return. Default: 30s.
	Timeout time.Duration

	// SettleDelay approximates network-idle after document ready.
	// Default: 1500ms.
	SettleDelay time.Duration

	// ScreenshotQuality is the JPEG quality (1-100). Default: 70.
	ScreenshotQuality int

	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string
}

func (o Options) withDefaults() Options {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = 1440
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = 900
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 1500 * time.Millisecond
	}
	if o.ScreenshotQuality <= 0 {
		o.ScreenshotQuality = 70
	}
	return o
}

// ChromeRenderer renders pages in an isolated headless Chrome context per
// call. The browsing context is released on every exit path, including
// caller cancellation.
type ChromeRenderer struct {
	opts Options
}

// NewChromeRenderer creates a ChromeRenderer with the given options.
func NewChromeRenderer(opts Options) *ChromeRenderer {
	return &ChromeRenderer{opts: opts.withDefaults()}
}

// Render loads the URL, waits for document ready plus a settle delay
// (bounded overall by Options.Timeout), and captures the DOM and a
// viewport-only screenshot.
func (r *ChromeRenderer) Render(ctx context.Context, targetURL string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
	)
	if r.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(r.opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	start := time.Now()
	var html string
	var shot []byte

	err := chromedp.Run(taskCtx,
		emulation.SetDeviceMetricsOverride(
			int64(r.opts.ViewportWidth), int64(r.opts.ViewportHeight), 1.0, false),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.opts.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Viewport capture only, never the full scrollable page.
			buf, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatJpeg).
				WithQuality(int64(r.opts.ScreenshotQuality)).
				Do(ctx)
			if err != nil {
				return err
			}
			shot = buf
			return nil
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, eris.Wrapf(ErrRenderTimeout, "after %s: %s", r.opts.Timeout, targetURL)
		}
		return nil, eris.Wrapf(ErrNavigation, "%s: %v", targetURL, err)
	}

	zap.L().Debug("render: page captured",
		zap.String("url", targetURL),
		zap.Int("html_bytes", len(html)),
		zap.Int("screenshot_bytes", len(shot)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Snapshot{HTML: html, Screenshot: shot}, nil
}
