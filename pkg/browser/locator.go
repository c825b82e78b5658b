package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrEmptyChain = errors.New("locator chain has no strategies")

// Strategy is one named way to locate a UI element, with its own short
// timeout. New portal variants add strategies instead of branching.
type Strategy struct {
	Name     string
	Selector string
	Timeout  time.Duration
}

// Chain is an ordered list of locator strategies, tried in sequence until
// one succeeds.
type Chain []Strategy

// S builds a single-strategy chain.
func S(name, selector string) Chain {
	return Chain{{Name: name, Selector: selector}}
}

// WithTimeout returns a copy of the chain with every strategy's timeout set.
func (c Chain) WithTimeout(d time.Duration) Chain {
	out := make(Chain, len(c))
	for i, s := range c {
		s.Timeout = d
		out[i] = s
	}

	return out
}

// Eval tries each strategy in order. The first nil error wins; when every
// strategy fails the joined failures are returned. A cancelled ctx stops the
// walk immediately.
func (c Chain) Eval(ctx context.Context, try func(Strategy) error) error {
	if len(c) == 0 {
		return ErrEmptyChain
	}

	errs := make([]error, 0, len(c))

	for _, s := range c {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := try(s)
		if err == nil {
			return nil
		}

		errs = append(errs, fmt.Errorf("strategy %q: %w", s.Name, err))
	}

	return fmt.Errorf("no locator strategy matched: %w", errors.Join(errs...))
}
