package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures a Chrome-backed renderer session.
type BrowserConfig struct {
	// Headful runs a visible browser instead of headless Chrome.
	Headful bool

	// ResourceBlocking lists resource types to block (images, fonts, media,
	// stylesheets). Factsheet prices are plain table text, so blocking heavy
	// resources cuts load time without losing anything.
	ResourceBlocking []string

	// ReadySelector and ReadyText define the marker WaitReady waits for.
	// Defaults: a td cell containing "Exit Price:".
	ReadySelector string
	ReadyText     string

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.ReadySelector == "" {
		c.ReadySelector = "td"
	}
	if c.ReadyText == "" {
		c.ReadyText = "/exit price:/i"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser is a Renderer backed by one local Chrome process and a single
// stealth page that is re-navigated for every fund.
type Browser struct {
	cfg     BrowserConfig
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
}

// Launch starts Chrome and returns a connected session.
func Launch(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	cfg.defaults()
	log := cfg.Logger

	l := launcher.New().Headless(!cfg.Headful)
	l = l.Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("renderer: launch chrome: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("renderer: connect: %w", err)
	}
	log.Debug("renderer: chrome launched", "url", u, "headful", cfg.Headful)

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("renderer: create page: %w", err)
	}

	if len(cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, cfg.ResourceBlocking); err != nil {
			log.Warn("renderer: resource blocking failed", "error", err)
		}
	}

	return &Browser{cfg: cfg, lnch: l, browser: b, page: page}, nil
}

// NewFactory returns a Factory that launches a fresh Chrome session.
func NewFactory(cfg BrowserConfig) Factory {
	return func(ctx context.Context) (Renderer, error) {
		return Launch(ctx, cfg)
	}
}

// Navigate loads url in the session page.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigate, url, err)
	}
	return nil
}

// WaitReady waits for the ready marker to appear in the page.
func (b *Browser) WaitReady(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := b.page.Context(waitCtx).ElementR(b.cfg.ReadySelector, b.cfg.ReadyText)
	if err != nil {
		return fmt.Errorf("%w: %q after %s: %v", ErrWaitTimeout, b.cfg.ReadyText, timeout, err)
	}
	return nil
}

// HTML returns the rendered document.
func (b *Browser) HTML(ctx context.Context) (string, error) {
	html, err := b.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("renderer: get html: %w", err)
	}
	return html, nil
}

// Close shuts down the page, Chrome and the launcher temp profile.
func (b *Browser) Close() error {
	if b.page != nil {
		b.page.Close()
		b.page = nil
	}
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}
