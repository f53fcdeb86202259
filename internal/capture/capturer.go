// Package capture drives headless Chrome to render a source page at every
// configured viewport width.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/presell"
)

// Config controls the behavior of the capturer.
type Config struct {
	UserAgent      string
	ViewportHeight int
	NavTimeout     time.Duration
	Settle         time.Duration
	JPEGQuality    int
	// RunTimeout bounds a whole 20-width run. Zero disables the deadline,
	// leaving only per-navigation timeouts.
	RunTimeout time.Duration
}

// session is one browser tab reused across widths within a run.
type session interface {
	Shoot(ctx context.Context, url string, width int) ([]byte, error)
	Close()
}

// Capturer implements presell.Capturer using chromedp and headless Chrome.
// One browser session serves a whole run; widths are processed sequentially
// because viewport resize and full-page capture need a stable size.
type Capturer struct {
	cfg         Config
	store       presell.ScreenshotStore
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc

	// newSession is swapped out in tests.
	newSession func(ctx context.Context) (session, error)
}

// New creates a Capturer backed by chromedp.
func New(cfg Config, store presell.ScreenshotStore, logger *zap.Logger) (*Capturer, error) {
	if store == nil {
		return nil, fmt.Errorf("screenshot store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 1080
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 85
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	c := &Capturer{
		cfg:         cfg,
		store:       store,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
	c.newSession = c.startChromeSession
	return c, nil
}

// Close cancels the allocator context.
func (c *Capturer) Close() {
	if c.allocCancel != nil {
		c.allocCancel()
	}
}

// Capture renders url at every capture width and writes one JPEG per width
// through the screenshot store. The run is all-or-nothing: any width's
// navigation or capture failure aborts it, written files are removed, and no
// index is returned. The browser session is released on every exit path.
func (c *Capturer) Capture(ctx context.Context, url string, campaignID string) (map[int]string, error) {
	runCtx := ctx
	if c.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout)
		defer cancel()
	}

	sess, err := c.newSession(runCtx)
	if err != nil {
		return nil, &presell.CaptureError{URL: url, Err: fmt.Errorf("start browser session: %w", err)}
	}
	defer sess.Close()

	index := make(map[int]string, len(presell.CaptureWidths))
	for _, width := range presell.CaptureWidths {
		img, err := sess.Shoot(runCtx, url, width)
		if err != nil {
			c.cleanup(campaignID)
			return nil, &presell.CaptureError{URL: url, Width: width, Err: err}
		}
		path := presell.ScreenshotPath(campaignID, width)
		if _, err := c.store.PutObject(runCtx, path, "image/jpeg", img); err != nil {
			c.cleanup(campaignID)
			return nil, &presell.CaptureError{URL: url, Width: width, Err: fmt.Errorf("persist screenshot: %w", err)}
		}
		index[width] = path
		c.logger.Debug("captured width",
			zap.String("campaign_id", campaignID),
			zap.Int("width", width),
		)
	}
	return index, nil
}

// cleanup removes any images written before an aborted run. Best effort: the
// index was never persisted, so leftovers are garbage, not corruption.
func (c *Capturer) cleanup(campaignID string) {
	cleanCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.RemoveAll(cleanCtx, presell.ScreenshotPrefix(campaignID)); err != nil {
		c.logger.Warn("screenshot cleanup failed",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
	}
}

type chromeSession struct {
	cfg       Config
	tabCtx    context.Context
	cancelTab context.CancelFunc
}

func (c *Capturer) startChromeSession(ctx context.Context) (session, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.allocator)
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	stopForward := forwardCancel(ctx, cancelTab)
	sess := &chromeSession{
		cfg:    c.cfg,
		tabCtx: tabCtx,
		cancelTab: func() {
			stopForward()
			cancelTab()
		},
	}
	return sess, nil
}

// Shoot resizes the viewport, navigates, waits for the page to mostly
// settle, and captures a full-page JPEG.
func (s *chromeSession) Shoot(ctx context.Context, url string, width int) ([]byte, error) {
	navCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.NavTimeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	var buf []byte
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(s.cfg.UserAgent),
		chromedp.EmulateViewport(int64(width), int64(s.cfg.ViewportHeight)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.Settle),
		chromedp.FullScreenshot(&buf, s.cfg.JPEGQuality),
	}
	if err := chromedp.Run(navCtx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return buf, nil
}

func (s *chromeSession) Close() {
	s.cancelTab()
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
