package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeLauncher launches headless Chrome sessions via chromedp.
type ChromeLauncher struct {
	cfg Config
}

func NewChromeLauncher(cfg Config) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg.withDefaults()}
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	profileDir, err := os.MkdirTemp("", "robot-profile-")
	if err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	if l.cfg.DownloadDir != "" {
		if err := os.MkdirAll(l.cfg.DownloadDir, 0o755); err != nil {
			return nil, fmt.Errorf("create download dir: %w", err)
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("lang", l.cfg.Locale),
		chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight),
		chromedp.UserDataDir(profileDir),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		cfg:        l.cfg,
		ctx:        tabCtx,
		cancels:    []context.CancelFunc{tabCancel, allocCancel},
		profileDir: profileDir,
	}

	// Start the browser eagerly so Launch fails fast when Chrome is missing.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = s.Close()

		return nil, fmt.Errorf("start chrome: %w", err)
	}

	if l.cfg.DownloadDir != "" {
		err := chromedp.Run(tabCtx,
			cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(l.cfg.DownloadDir),
		)
		if err != nil {
			_ = s.Close()

			return nil, fmt.Errorf("set download dir: %w", err)
		}
	}

	// Portals throw native confirm dialogs ("discard unsaved changes?");
	// accept them so workflows only deal with in-page state.
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				_ = chromedp.Run(tabCtx, page.HandleJavaScriptDialog(true))
			}()
		}
	})

	return s, nil
}

type chromeSession struct {
	cfg        Config
	ctx        context.Context
	cancels    []context.CancelFunc
	profileDir string
	closeOnce  sync.Once
}

// run executes actions on the tab context with a bounded timeout. The caller
// ctx is only consulted for early cancellation: chromedp actions must run on
// the session's own context chain.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	rctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	return chromedp.Run(rctx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 2*s.cfg.DefaultTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) Click(ctx context.Context, chain Chain) error {
	return chain.Eval(ctx, func(st Strategy) error {
		return s.run(ctx, st.Timeout,
			chromedp.WaitVisible(st.Selector, chromedp.ByQuery),
			chromedp.Click(st.Selector, chromedp.ByQuery),
		)
	})
}

func (s *chromeSession) Fill(ctx context.Context, chain Chain, value string) error {
	return chain.Eval(ctx, func(st Strategy) error {
		return s.run(ctx, st.Timeout,
			chromedp.WaitVisible(st.Selector, chromedp.ByQuery),
			chromedp.SetValue(st.Selector, value, chromedp.ByQuery),
		)
	})
}

func (s *chromeSession) SelectByLabel(ctx context.Context, chain Chain, label string) error {
	return chain.Eval(ctx, func(st Strategy) error {
		js := fmt.Sprintf(`(function() {
			const el = document.querySelector(%q);
			if (!el || !el.options) { return false; }
			for (const opt of el.options) {
				if (opt.label.trim() === %q || opt.text.trim() === %q) {
					el.value = opt.value;
					el.dispatchEvent(new Event('change', {bubbles: true}));
					return true;
				}
			}
			return false;
		})()`, st.Selector, label, label)

		var ok bool
		if err := s.run(ctx, st.Timeout, chromedp.Evaluate(js, &ok)); err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("option %q not found in %q", label, st.Selector)
		}

		return nil
	})
}

func (s *chromeSession) Upload(ctx context.Context, chain Chain, path string) error {
	return chain.Eval(ctx, func(st Strategy) error {
		return s.run(ctx, st.Timeout,
			chromedp.SetUploadFiles(st.Selector, []string{path}, chromedp.ByQuery),
		)
	})
}

func (s *chromeSession) WaitVisible(ctx context.Context, chain Chain) error {
	return chain.Eval(ctx, func(st Strategy) error {
		return s.run(ctx, st.Timeout, chromedp.WaitVisible(st.Selector, chromedp.ByQuery))
	})
}

func (s *chromeSession) WaitHidden(ctx context.Context, chain Chain) error {
	return chain.Eval(ctx, func(st Strategy) error {
		return s.run(ctx, st.Timeout, chromedp.WaitNotVisible(st.Selector, chromedp.ByQuery))
	})
}

func (s *chromeSession) Text(ctx context.Context, chain Chain) (string, error) {
	var out string

	err := chain.Eval(ctx, func(st Strategy) error {
		return s.run(ctx, st.Timeout,
			chromedp.Text(st.Selector, &out, chromedp.ByQuery, chromedp.NodeVisible),
		)
	})

	return out, err
}

func (s *chromeSession) PageContent(ctx context.Context) (string, error) {
	var html string

	err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	return html, err
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var url string

	err := s.run(ctx, 0, chromedp.Location(&url))

	return url, err
}

func (s *chromeSession) Evaluate(ctx context.Context, js string, out any) error {
	return s.run(ctx, 0, chromedp.Evaluate(js, out))
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte

	err := s.run(ctx, 0, chromedp.FullScreenshot(&buf, 90))

	return buf, err
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}

		if s.profileDir != "" {
			_ = os.RemoveAll(s.profileDir)
		}
	})

	return nil
}
