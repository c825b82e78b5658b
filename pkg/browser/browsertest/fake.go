// Package browsertest provides a scripted browser.Session for workflow and
// engine tests. Operations are keyed "op:first-strategy-name" so tests can
// fail specific interactions a fixed number of times.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dorumake/robot/pkg/browser"
)

type Call struct {
	Op       string
	Strategy string
	Value    string
}

type Fake struct {
	mu    sync.Mutex
	calls []Call

	// FailWith fails the keyed operation on every call.
	FailWith map[string]error
	// FailTimes fails the keyed operation the given number of times, then
	// lets it succeed. Keys: "click:request_button".
	FailTimes map[string]int
	// Texts answers Text calls by strategy name.
	Texts map[string]string
	// Contents answers successive PageContent calls; the last entry is
	// reused once the queue drains.
	Contents []string
	// LocationValue answers Location.
	LocationValue string
	// EvalFunc answers Evaluate; nil means success with untouched out.
	EvalFunc func(js string, out any) error
	// ShotErr makes Screenshot fail.
	ShotErr error

	contentIdx int
	CloseCount int
}

func New() *Fake {
	return &Fake{
		FailWith:  map[string]error{},
		FailTimes: map[string]int{},
		Texts:     map[string]string{},
	}
}

// Launch implements browser.Launcher, handing out the fake itself.
func (f *Fake) Launch(context.Context) (browser.Session, error) {
	return f, nil
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Call, len(f.calls))
	copy(out, f.calls)

	return out
}

// CallsFor returns the keys ("op:strategy") of all recorded calls.
func (f *Fake) CallsFor(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string

	for _, c := range f.calls {
		if c.Op == op {
			keys = append(keys, c.Strategy)
		}
	}

	return keys
}

func (f *Fake) record(op string, chain browser.Chain, value string) error {
	strategy := ""
	if len(chain) > 0 {
		strategy = chain[0].Name
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: op, Strategy: strategy, Value: value})

	key := op + ":" + strategy
	if err, ok := f.FailWith[key]; ok {
		return err
	}

	if n, ok := f.FailTimes[key]; ok && n > 0 {
		f.FailTimes[key] = n - 1

		return fmt.Errorf("scripted failure for %s (%d left)", key, n-1)
	}

	return nil
}

func (f *Fake) Navigate(_ context.Context, url string) error {
	return f.record("navigate", browser.S("url", url), url)
}

func (f *Fake) Click(_ context.Context, chain browser.Chain) error {
	return f.record("click", chain, "")
}

func (f *Fake) Fill(_ context.Context, chain browser.Chain, value string) error {
	return f.record("fill", chain, value)
}

func (f *Fake) SelectByLabel(_ context.Context, chain browser.Chain, label string) error {
	return f.record("select", chain, label)
}

func (f *Fake) Upload(_ context.Context, chain browser.Chain, path string) error {
	return f.record("upload", chain, path)
}

func (f *Fake) WaitVisible(_ context.Context, chain browser.Chain) error {
	return f.record("wait_visible", chain, "")
}

func (f *Fake) WaitHidden(_ context.Context, chain browser.Chain) error {
	return f.record("wait_hidden", chain, "")
}

func (f *Fake) Text(_ context.Context, chain browser.Chain) (string, error) {
	if err := f.record("text", chain, ""); err != nil {
		return "", err
	}

	if len(chain) > 0 {
		return f.Texts[chain[0].Name], nil
	}

	return "", nil
}

func (f *Fake) PageContent(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "page_content"})

	if len(f.Contents) == 0 {
		return "", nil
	}

	content := f.Contents[f.contentIdx]
	if f.contentIdx < len(f.Contents)-1 {
		f.contentIdx++
	}

	return content, nil
}

func (f *Fake) Location(context.Context) (string, error) {
	return f.LocationValue, nil
}

func (f *Fake) Evaluate(_ context.Context, js string, out any) error {
	if err := f.record("evaluate", nil, js); err != nil {
		return err
	}

	if f.EvalFunc != nil {
		return f.EvalFunc(js, out)
	}

	return nil
}

func (f *Fake) Screenshot(context.Context) ([]byte, error) {
	if f.ShotErr != nil {
		return nil, f.ShotErr
	}

	return []byte("png"), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CloseCount++

	return nil
}
