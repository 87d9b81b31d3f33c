// Package ebirdalert scrapes the eBird rare bird alert summary page through a
// logged in browser session.
package ebirdalert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"rarebird/lib/browser"
	"rarebird/lib/observation"
	"rarebird/lib/telemetry"
	"rarebird/lib/textutil"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("rarebird.lib.scrapers.ebirdalert")

const (
	DefaultAlertURL = "https://ebird.org/alert/summary?sid=SN35466"
	DefaultSettle   = 3 * time.Second

	DebugPageFile    = "ebird_page_debug.html"
	ErrorCaptureBase = "ebird_error_screenshot"

	usernameSelector = "#input_username"
	passwordSelector = "#input_password"
	submitSelector   = "#form_submit"
	loginWait        = 10 * time.Second
)

var (
	ErrLoginFailed      = errors.New("login failed, please check your credentials")
	ErrPageDidNotLoad   = errors.New("login page did not load properly")
	ErrLoginElements    = errors.New("could not find login elements")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrScrapeFailed     = errors.New("error scraping alerts")
	// ErrNoStrategyMatched is logged, never returned: a page with no
	// recognizable alert structure yields an empty result.
	ErrNoStrategyMatched = errors.New("no extraction strategy matched the page")
)

type State int

const (
	NotAuthenticated State = iota
	Authenticating
	Authenticated
	Scraping
	Succeeded
	FailedWithDiagnostics
)

func (s State) String() string {
	switch s {
	case NotAuthenticated:
		return "not_authenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Scraping:
		return "scraping"
	case Succeeded:
		return "succeeded"
	case FailedWithDiagnostics:
		return "failed_with_diagnostics"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Options struct {
	Username string
	Password string
	// AlertURL defaults to DefaultAlertURL.
	AlertURL string
	// DebugDir receives the page dump and error capture, "" is the
	// working directory.
	DebugDir string
	// Settle is how long to wait after submitting the login form and
	// before reading the page, zero does not wait.
	Settle  time.Duration
	Browser browser.Options
	// Session replaces the browser opened from Browser, mostly for tests.
	Session browser.Session
}

type Scraper struct {
	opts          Options
	session       browser.Session
	state         State
	authenticated bool
	closed        bool
}

// New acquires a browser session. The caller owns the Scraper and must Close
// it, With does so automatically.
func New(ctx context.Context, opts Options) (*Scraper, error) {
	if opts.AlertURL == "" {
		opts.AlertURL = DefaultAlertURL
	}

	session := opts.Session
	if session == nil {
		var err error
		session, err = browser.New(ctx, opts.Browser)
		if err != nil {
			return nil, fmt.Errorf("open browser: %w", err)
		}
	}
	return &Scraper{opts: opts, session: session}, nil
}

// With runs fn against a fresh scraper and releases the session on every
// path out.
func With(ctx context.Context, opts Options, fn func(s *Scraper) error) error {
	s, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (s *Scraper) State() State {
	return s.state
}

// Close releases the browser session, calling it more than once is a no-op.
func (s *Scraper) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.session.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login submits the credentials through the site's login form. The alert
// page redirects there when no session is active.
func (s *Scraper) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	err := s.login(ctx)
	if err != nil {
		s.state = NotAuthenticated
		s.authenticated = false
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.state = Authenticated
	s.authenticated = true
	slog.InfoContext(ctx, "login successful")
	return nil
}

func (s *Scraper) login(ctx context.Context) error {
	if s.closed {
		return browser.ErrClosed
	}
	s.state = Authenticating
	slog.InfoContext(ctx, "logging in to ebird", "url", s.opts.AlertURL)

	err := s.session.Navigate(ctx, s.opts.AlertURL)
	if err != nil {
		return fmt.Errorf("navigate to alert page: %w", err)
	}

	err = s.session.WaitReady(ctx, usernameSelector, loginWait)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPageDidNotLoad, err)
	}
	for _, sel := range []string{passwordSelector, submitSelector} {
		ok, err := s.session.Exists(ctx, sel)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrLoginElements, sel)
		}
	}

	err = s.session.Fill(ctx, usernameSelector, s.opts.Username)
	if err != nil {
		return wrapLoginElement(err)
	}
	err = s.session.Fill(ctx, passwordSelector, s.opts.Password)
	if err != nil {
		return wrapLoginElement(err)
	}
	err = s.session.Click(ctx, submitSelector)
	if err != nil {
		return wrapLoginElement(err)
	}

	err = sleep(ctx, s.opts.Settle)
	if err != nil {
		return err
	}

	location, err := s.session.Location(ctx)
	if err != nil {
		return err
	}
	if textutil.ContainsFold(location, "login") {
		slog.WarnContext(ctx, "still on login page after submit", "location", location)
		return ErrLoginFailed
	}
	return nil
}

func wrapLoginElement(err error) error {
	if errors.Is(err, browser.ErrNoElement) {
		return fmt.Errorf("%w: %w", ErrLoginElements, err)
	}
	return err
}

// Scrape reads every alert off the current page. A page whose structure no
// strategy recognizes is dumped to DebugPageFile and yields no alerts.
func (s *Scraper) Scrape(ctx context.Context) ([]observation.ScrapedAlert, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	if !s.authenticated || s.closed {
		span.SetStatus(codes.Error, ErrNotAuthenticated.Error())
		return nil, ErrNotAuthenticated
	}
	s.state = Scraping
	slog.InfoContext(ctx, "scraping alert data")

	alerts, err := s.scrape(ctx)
	if err != nil {
		s.captureError(ctx)
		s.state = FailedWithDiagnostics
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return nil, fmt.Errorf("%w: %w", ErrScrapeFailed, err)
	}

	s.state = Succeeded
	span.SetAttributes(attribute.Int("alerts", len(alerts)))
	slog.InfoContext(ctx, "scraped alerts", "count", len(alerts))
	return alerts, nil
}

func (s *Scraper) scrape(ctx context.Context) ([]observation.ScrapedAlert, error) {
	err := sleep(ctx, s.opts.Settle)
	if err != nil {
		return nil, err
	}

	markup, err := s.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	for _, strat := range strategies {
		elements := strat.match(doc)
		if elements.Length() == 0 {
			continue
		}
		slog.InfoContext(ctx, "found alerts", "count", elements.Length(), "strategy", strat.name)

		var alerts []observation.ScrapedAlert
		elements.Each(func(_ int, el *goquery.Selection) {
			alert, ok := strat.extract(ctx, el)
			if ok {
				alerts = append(alerts, alert)
			}
		})
		return alerts, nil
	}

	slog.WarnContext(ctx, "using fallback extraction", "err", ErrNoStrategyMatched)
	s.writeDebugPage(ctx, markup)
	return extractFromPageSource(ctx, doc), nil
}

func (s *Scraper) debugPath(name string) string {
	return filepath.Join(s.opts.DebugDir, name)
}

func (s *Scraper) writeDebugPage(ctx context.Context, markup string) {
	path := s.debugPath(DebugPageFile)
	err := os.WriteFile(path, []byte(markup), 0644)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save page source", "path", path, "err", err)
		return
	}
	slog.InfoContext(ctx, "page source saved for inspection", "path", path)
}

// captureError records what the page looked like when scraping broke.
// The session may itself be the thing that failed, so this only logs.
func (s *Scraper) captureError(ctx context.Context) {
	capture, err := s.session.Screenshot(context.WithoutCancel(ctx))
	if err != nil {
		slog.ErrorContext(ctx, "failed to capture screenshot", "err", err)
		return
	}
	path := s.debugPath(ErrorCaptureBase + "." + capture.Ext)
	err = os.WriteFile(path, capture.Data, 0644)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save screenshot", "path", path, "err", err)
		return
	}
	slog.InfoContext(ctx, "screenshot saved", "path", path)
}
