// Package browser abstracts the page driving needed by the scrapers behind a
// small Session interface. NewChrome drives a real browser that renders
// javascript, NewHTTP fetches pages and submits forms over plain HTTP.
package browser

import (
	"context"
	"errors"
	"rarebird/lib/restyutil"
	"time"
)

var (
	// ErrTimeout is returned by WaitReady when the selector never matched.
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrNoElement is returned when an action targets a selector that
	// matches nothing.
	ErrNoElement = errors.New("element not found")
	ErrClosed    = errors.New("session closed")
)

// Capture is a snapshot of the current page, Ext names the encoding of Data
// ("png" for a rendered screenshot, "html" for markup).
type Capture struct {
	Data []byte
	Ext  string
}

// Session is one stateful browsing context. Selectors are CSS selectors.
// A Session is not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector matches or timeout elapses.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// Exists reports whether selector currently matches without waiting.
	Exists(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	// Click activates the element, for submit controls this submits the
	// enclosing form.
	Click(ctx context.Context, selector string) error
	Location(ctx context.Context) (string, error)
	// HTML returns the current rendered markup.
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) (Capture, error)
	Close() error
}

type Engine string

const (
	EngineChrome Engine = "chrome"
	EngineHTTP   Engine = "http"
)

type Options struct {
	Engine   Engine
	Headless bool
	// UserAgent overrides the default desktop user agent.
	UserAgent string
	// HttpOutput receives request dumps from the http engine while debug
	// logging is on.
	HttpOutput restyutil.InstrumentOutput
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// New opens a session with the requested engine, chrome is the default.
func New(ctx context.Context, opts Options) (Session, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	switch opts.Engine {
	case EngineHTTP:
		return NewHTTP(opts)
	case EngineChrome, "":
		return NewChrome(ctx, opts)
	}
	return nil, errors.New("unknown browser engine: " + string(opts.Engine))
}
