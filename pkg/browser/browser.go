// Package browser abstracts the headless browser session that portal
// workflows drive. Workflow code depends on Session and locator Chains only;
// the chromedp driver lives behind the Launcher.
package browser

import (
	"context"
	"time"
)

// Config describes one browser session. Every run gets a fresh profile.
type Config struct {
	Headless       bool
	WindowWidth    int
	WindowHeight   int
	Locale         string
	DownloadDir    string
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WindowWidth == 0 {
		c.WindowWidth = 1920
	}

	if c.WindowHeight == 0 {
		c.WindowHeight = 1080
	}

	if c.Locale == "" {
		c.Locale = "tr-TR"
	}

	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 30 * time.Second
	}

	return c
}

// Launcher acquires browser sessions. Implementations: Chrome (chromedp)
// for production, fakes in tests.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one exclusively-owned browser tab. Methods taking a Chain try
// its strategies in order. JS dialogs (confirm/alert) are auto-accepted.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, chain Chain) error
	Fill(ctx context.Context, chain Chain, value string) error
	SelectByLabel(ctx context.Context, chain Chain, label string) error
	Upload(ctx context.Context, chain Chain, path string) error
	WaitVisible(ctx context.Context, chain Chain) error
	WaitHidden(ctx context.Context, chain Chain) error
	Text(ctx context.Context, chain Chain) (string, error)
	PageContent(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, js string, out any) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
