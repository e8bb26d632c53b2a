package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/luxesuite/luxeapi/session"
	"golang.org/x/sync/singleflight"
)

// DefaultCooldown is the minimum spacing between two renewal network calls.
const DefaultCooldown = time.Second

const flightKey = "access-token"

var (
	// ErrCooldown is returned when a renewal is suppressed by the cooldown guard
	// and the previous attempt failed.
	ErrCooldown = errors.New("refresh cooldown active")
	// ErrRenewalFailed wraps every failed renewal attempt.
	ErrRenewalFailed = errors.New("token renewal failed")
	// ErrEmptyToken is returned when the renewal endpoint answers without a token.
	ErrEmptyToken = errors.New("renewal returned empty access token")
	// ErrNilRenewer is returned by New when no Renewer is supplied.
	ErrNilRenewer = errors.New("nil renewer")
	// ErrNilStore is returned by New when no token store is supplied.
	ErrNilStore = errors.New("nil token store")
)

// Renewer performs the renewal network call and returns the new access token.
type Renewer interface {
	Renew(ctx context.Context) (string, error)
}

// RenewerFunc adapts a function to Renewer.
type RenewerFunc func(ctx context.Context) (string, error)

// Renew calls f.
func (f RenewerFunc) Renew(ctx context.Context) (string, error) {
	return f(ctx)
}

// Observer is notified about coordinator activity. Calls are made from the
// goroutine running the flight, except Joined which runs on the waiter.
type Observer interface {
	Started()
	Joined()
	Suppressed(prior error)
	Completed(err error, elapsed time.Duration)
}

// Options tunes a Coordinator.
type Options struct {
	// Cooldown is the suppression window after a completed attempt.
	// Zero selects DefaultCooldown; negative disables the guard.
	Cooldown time.Duration
	// Timeout bounds a single renewal call. Zero means no bound beyond the
	// renewer's own transport timeout.
	Timeout  time.Duration
	Now      func() time.Time
	Observer Observer
}

type outcome struct {
	at    time.Time
	token string
	err   error
}

// Coordinator runs single-flight token renewal.
type Coordinator struct {
	renewer Renewer
	store   session.Store
	opts    Options

	group singleflight.Group

	mu   sync.Mutex
	last outcome
}

// New creates a Coordinator that writes renewed tokens to store.
func New(renewer Renewer, store session.Store, opts Options) (*Coordinator, error) {
	if renewer == nil {
		return nil, ErrNilRenewer
	}
	if store == nil {
		return nil, ErrNilStore
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		renewer: renewer,
		store:   store,
		opts:    opts,
	}, nil
}

// EnsureFreshToken renews the access token, joining a renewal already in
// flight when there is one. ctx only bounds how long this caller waits; the
// flight itself keeps running for the other waiters.
func (c *Coordinator) EnsureFreshToken(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	led := false
	ch := c.group.DoChan(flightKey, func() (any, error) {
		led = true
		return c.run(ctx)
	})

	select {
	case res := <-ch:
		if !led && c.opts.Observer != nil {
			c.opts.Observer.Joined()
		}
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// LastAttempt reports when the previous renewal completed and how it ended.
func (c *Coordinator) LastAttempt() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.at, c.last.err
}

// Reset forgets the previous outcome so the next call is not subject to the
// cooldown. Used after an explicit sign-in.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.last = outcome{}
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context) (any, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()

	if c.coolingDown(last) {
		if c.opts.Observer != nil {
			c.opts.Observer.Suppressed(last.err)
		}
		if last.err != nil {
			return "", fmt.Errorf("%w: %w", ErrCooldown, last.err)
		}
		return last.token, nil
	}

	if c.opts.Observer != nil {
		c.opts.Observer.Started()
	}

	flightCtx := context.WithoutCancel(ctx)
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		flightCtx, cancel = context.WithTimeout(flightCtx, c.opts.Timeout)
		defer cancel()
	}

	start := c.opts.Now()
	token, err := c.renewer.Renew(flightCtx)
	token = strings.TrimSpace(token)
	if err == nil && token == "" {
		err = ErrEmptyToken
	}
	if err == nil {
		err = c.store.Set(flightCtx, token)
	}
	if err != nil {
		token = ""
		err = fmt.Errorf("%w: %w", ErrRenewalFailed, err)
	}

	done := c.opts.Now()
	c.mu.Lock()
	c.last = outcome{at: done, token: token, err: err}
	c.mu.Unlock()

	if c.opts.Observer != nil {
		c.opts.Observer.Completed(err, done.Sub(start))
	}
	return token, err
}

func (c *Coordinator) coolingDown(last outcome) bool {
	if c.opts.Cooldown < 0 || last.at.IsZero() {
		return false
	}
	return c.opts.Now().Sub(last.at) < c.opts.Cooldown
}
