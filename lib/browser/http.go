package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"rarebird/lib/restyutil"
	"rarebird/lib/telemetry"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// httpSession emulates a browser over plain HTTP: pages are fetched and
// parsed, filled inputs are remembered and submitted with their form.
// Javascript is never run.
type httpSession struct {
	http     *resty.Client
	location *url.URL
	doc      *goquery.Document
	markup   string
	// filled input values keyed by input name
	filled map[string]string
	closed bool
}

// NewHTTP opens a session that needs no browser binary.
func NewHTTP(opts Options) (Session, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "rarebird.lib.browser/http")
	restyutil.InstrumentClient(client, opts.HttpOutput)

	return &httpSession{
		http:   client,
		filled: map[string]string{},
	}, nil
}

func (s *httpSession) load(res *resty.Response) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return err
	}
	s.doc = doc
	s.markup = string(res.Body())
	s.location = res.RawResponse.Request.URL
	s.filled = map[string]string{}
	return nil
}

func (s *httpSession) resolve(ref string) (string, error) {
	target, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if s.location == nil {
		return target.String(), nil
	}
	return s.location.ResolveReference(target).String(), nil
}

func (s *httpSession) Navigate(ctx context.Context, link string) error {
	if s.closed {
		return ErrClosed
	}
	target, err := s.resolve(link)
	if err != nil {
		return err
	}
	res, err := s.http.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		return err
	}
	return s.load(res)
}

func (s *httpSession) find(selector string) *goquery.Selection {
	if s.doc == nil {
		return &goquery.Selection{}
	}
	return s.doc.Find(selector)
}

// WaitReady checks once, markup fetched over HTTP never changes on its own.
func (s *httpSession) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	if s.closed {
		return ErrClosed
	}
	if s.find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return nil
}

func (s *httpSession) Exists(ctx context.Context, selector string) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	return s.find(selector).Length() > 0, nil
}

func (s *httpSession) element(selector string) (*goquery.Selection, error) {
	if s.closed {
		return nil, ErrClosed
	}
	sel := s.find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return sel, nil
}

func (s *httpSession) Fill(ctx context.Context, selector, value string) error {
	sel, err := s.element(selector)
	if err != nil {
		return err
	}
	name, ok := sel.Attr("name")
	if !ok || name == "" {
		return fmt.Errorf("cannot fill %s: input has no name", selector)
	}
	s.filled[name] = value
	return nil
}

// Click follows links and submits forms, anything else is a no-op.
func (s *httpSession) Click(ctx context.Context, selector string) error {
	sel, err := s.element(selector)
	if err != nil {
		return err
	}
	if goquery.NodeName(sel) == "a" {
		href, ok := sel.Attr("href")
		if !ok {
			return nil
		}
		return s.Navigate(ctx, href)
	}

	form := sel.Closest("form")
	if form.Length() == 0 {
		return nil
	}
	return s.submit(ctx, form, sel)
}

func (s *httpSession) formValues(form, submitter *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, field *goquery.Selection) {
		name := field.AttrOr("name", "")
		if _, disabled := field.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(field) {
		case "textarea":
			values.Add(name, field.Text())
			return
		case "select":
			opt := field.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = field.Find("option").First()
			}
			if opt.Length() > 0 {
				values.Add(name, opt.AttrOr("value", opt.Text()))
			}
			return
		}

		switch strings.ToLower(field.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if _, checked := field.Attr("checked"); !checked {
				return
			}
			values.Add(name, field.AttrOr("value", "on"))
		case "submit", "image", "button", "reset", "file":
		default:
			values.Add(name, field.AttrOr("value", ""))
		}
	})

	if name, ok := submitter.Attr("name"); ok && name != "" {
		values.Set(name, submitter.AttrOr("value", ""))
	}
	for name, value := range s.filled {
		values.Set(name, value)
	}
	return values
}

func (s *httpSession) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	action := form.AttrOr("action", "")
	if action == "" && s.location != nil {
		action = s.location.String()
	}
	target, err := s.resolve(action)
	if err != nil {
		return err
	}
	values := s.formValues(form, submitter)

	req := s.http.R().SetContext(ctx)
	var res *resty.Response
	if strings.EqualFold(form.AttrOr("method", "get"), "post") {
		res, err = req.SetFormDataFromValues(values).Post(target)
	} else {
		res, err = req.SetQueryParamsFromValues(values).Get(target)
	}
	if err != nil {
		return err
	}
	return s.load(res)
}

func (s *httpSession) Location(ctx context.Context) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	if s.location == nil {
		return "", nil
	}
	return s.location.String(), nil
}

func (s *httpSession) HTML(ctx context.Context) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	return s.markup, nil
}

// Screenshot has nothing to render, so it captures the markup.
func (s *httpSession) Screenshot(ctx context.Context) (Capture, error) {
	if s.closed {
		return Capture{}, ErrClosed
	}
	return Capture{Data: []byte(s.markup), Ext: "html"}, nil
}

func (s *httpSession) Close() error {
	s.closed = true
	return nil
}
