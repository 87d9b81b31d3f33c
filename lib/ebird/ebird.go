// Package ebird is a client for the observation endpoints of the eBird
// API 2.0.
package ebird

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"rarebird/lib/observation"
	"rarebird/lib/restyutil"
	"rarebird/lib/telemetry"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("rarebird.lib.ebird")

const (
	DefaultBaseURL    = "https://api.ebird.org/v2"
	DefaultBack       = 14
	DefaultMaxResults = 100
	TokenHeader       = "X-eBirdApiToken"
)

var (
	ErrUnknownLocator = errors.New("locator not recognized")
	ErrBadStatus      = errors.New("unexpected response status")
)

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// Result is what every fetch produces. Records is empty unless Outcome is
// OutcomeOK, Err holds the diagnostic cause of a non-OK outcome.
type Result struct {
	Records []observation.Raw
	Outcome Outcome
	Err     error
}

// Query parameters shared by every endpoint. Back and MaxResults are sent
// as given, the service rejects values it does not accept.
type Query struct {
	Back       int
	MaxResults int
	Notable    bool
}

// DefaultQuery looks back DefaultBack days for up to DefaultMaxResults.
func DefaultQuery() Query {
	return Query{Back: DefaultBack, MaxResults: DefaultMaxResults}
}

type ClientOptions struct {
	Token   string
	BaseUrl string
	Timeout time.Duration
	// HttpOutput receives full request dumps while debug logging is on.
	HttpOutput restyutil.InstrumentOutput
}

type Client struct {
	Http *resty.Client
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetHeader(TokenHeader, opts.Token)
	client.SetHeader("accept", "application/json")
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "rarebird.lib.ebird/http")
	restyutil.InstrumentClient(client, opts.HttpOutput)

	return &Client{Http: client}
}

// Fetch runs one query. It never returns a Go error, failures are reported
// through the Result's Outcome and Err.
func (c *Client) Fetch(ctx context.Context, loc Locator, q Query) Result {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	span.SetAttributes(attribute.String("locator", loc.String()))

	path, params, ok := loc.endpoint(q.Notable)
	if !ok {
		slog.WarnContext(ctx, "locator not recognized", "locator", loc.String())
		span.SetStatus(codes.Error, ErrUnknownLocator.Error())
		return Result{Outcome: OutcomeFailed, Err: ErrUnknownLocator}
	}
	if q.Notable && loc.kind != kindRegion {
		slog.DebugContext(ctx, "notable only applies to region queries, ignoring", "locator", loc.String())
	}

	back := q.Back
	maxResults := q.MaxResults
	params.Set("back", strconv.Itoa(back))
	params.Set("maxResults", strconv.Itoa(maxResults))

	slog.InfoContext(ctx, "fetching observations", "locator", loc.String(), "path", path, "back", back, "max_results", maxResults)

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		slog.ErrorContext(ctx, "request failed", "locator", loc.String(), "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if res.StatusCode() == 404 {
		err = fmt.Errorf("%s: %s", path, res.Status())
		slog.WarnContext(ctx, "no data found", "locator", loc.String(), "status", res.StatusCode())
		return Result{Outcome: OutcomeNotFound, Err: err}
	}
	if res.IsError() {
		err = fmt.Errorf("%w: %s", ErrBadStatus, res.Status())
		slog.ErrorContext(ctx, "request failed", "locator", loc.String(), "status", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	records, err := observation.DecodeRaws(res.Body())
	if err != nil {
		slog.ErrorContext(ctx, "request failed", "locator", loc.String(), "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode response")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	slog.InfoContext(ctx, "found observations", "locator", loc.String(), "count", len(records))
	span.SetAttributes(attribute.Int("records", len(records)))
	return Result{Records: records, Outcome: OutcomeOK}
}

func (c *Client) RecentObservations(ctx context.Context, region string, back, maxResults int) Result {
	return c.Fetch(ctx, Region(region), Query{Back: back, MaxResults: maxResults})
}

func (c *Client) NotableObservations(ctx context.Context, region string, back, maxResults int) Result {
	return c.Fetch(ctx, Region(region), Query{Back: back, MaxResults: maxResults, Notable: true})
}

func (c *Client) HotspotObservations(ctx context.Context, locID string, back, maxResults int) Result {
	return c.Fetch(ctx, Hotspot(locID), Query{Back: back, MaxResults: maxResults})
}

func (c *Client) SpeciesObservations(ctx context.Context, region, speciesCode string, back, maxResults int) Result {
	return c.Fetch(ctx, Species(region, speciesCode), Query{Back: back, MaxResults: maxResults})
}

func (c *Client) NearbyObservations(ctx context.Context, lat, lng, distKm float64, back, maxResults int) Result {
	return c.Fetch(ctx, Geo(lat, lng, distKm), Query{Back: back, MaxResults: maxResults})
}
