// Package birdmap serves the bird map site and the newest observation
// artifact it plots.
package birdmap

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"rarebird/lib/artifact"
	"rarebird/lib/telemetry"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fastjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("rarebird.services.birdmap")

const DefaultPrefix = "ny_rare_birds"

type Options struct {
	// SiteDir holds the static site, DataDir the JSON artifacts.
	SiteDir string
	DataDir string
	Prefix  string
}

type Service struct {
	opts     Options
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	records  prometheus.Gauge
	parser   fastjson.ParserPool
}

func NewService(opts Options) *Service {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.SiteDir == "" {
		opts.SiteDir = "."
	}
	if opts.DataDir == "" {
		opts.DataDir = opts.SiteDir
	}

	s := &Service{
		opts:     opts,
		registry: prometheus.NewRegistry(),
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "birdmap",
		Name:      "latest_data_requests_total",
		Help:      "Number of latest data requests by outcome",
	}, []string{"outcome"})
	s.records = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "birdmap",
		Name:      "latest_data_records",
		Help:      "Number of records in the most recently served artifact",
	})
	s.registry.MustRegister(
		s.requests,
		s.records,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Handler routes every endpoint, responses allow any origin and are gzipped
// when the client accepts it.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_latest_data", s.serveLatestData)
	// legacy php path still used by older map pages
	mux.HandleFunc("/get_latest_data.php", s.serveLatestData)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.Handle("/", http.FileServer(http.Dir(s.opts.SiteDir)))
	return gzhttp.GzipHandler(allowAnyOrigin(mux))
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Service) serveLatestData(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "serveLatestData")
	defer span.End()

	path, data, err := artifact.ReadLatest(artifact.Pattern(s.opts.DataDir, s.opts.Prefix))
	if errors.Is(err, artifact.ErrNoArtifact) {
		s.requests.WithLabelValues("not_found").Inc()
		slog.WarnContext(ctx, "no data files found", "dir", s.opts.DataDir, "prefix", s.opts.Prefix)
		writeError(w, http.StatusNotFound, "No data files found")
		return
	}
	if err != nil {
		s.requests.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "failed to read latest data", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read latest data")
		writeError(w, http.StatusInternalServerError, "Failed to read data file")
		return
	}

	p := s.parser.Get()
	v, err := p.ParseBytes(data)
	if err != nil {
		s.parser.Put(p)
		s.requests.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "latest data file is malformed", "path", path, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed data file")
		writeError(w, http.StatusInternalServerError, "Malformed data file")
		return
	}
	records := 1
	if v.Type() == fastjson.TypeArray {
		arr, _ := v.Array()
		records = len(arr)
	}
	s.parser.Put(p)

	s.requests.WithLabelValues("ok").Inc()
	s.records.Set(float64(records))
	span.SetAttributes(attribute.String("path", path), attribute.Int("records", records))
	slog.InfoContext(ctx, "served data", "path", path, "records", records)

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
