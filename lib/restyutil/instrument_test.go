package restyutil

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput map[string]string

func (m memoryOutput) Write(id string, contents string) {
	m[id] = contents
}

func withLevel(t testing.TB, level slog.Level) {
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(previous) })
}

func TestInstrumentClientWritesExchange(t *testing.T) {
	withLevel(t, slog.LevelDebug)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"comName":"Snowy Owl"}]`))
	}))
	defer server.Close()

	out := memoryOutput{}
	client := resty.New()
	InstrumentClient(client, out)

	_, err := client.R().
		SetHeader("X-eBirdApiToken", "super-secret").
		Get(server.URL + "/data/obs/US-NY/recent")
	require.NoError(t, err)

	require.Len(t, out, 1)
	message := out["1"]
	require.Contains(t, message, "GET "+server.URL+"/data/obs/US-NY/recent")
	require.Contains(t, message, "Snowy Owl")
	require.Contains(t, message, "X-Ebirdapitoken: <redacted>")
	require.False(t, strings.Contains(message, "super-secret"))
}

func TestInstrumentClientQuietWithoutDebug(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	out := memoryOutput{}
	client := resty.New()
	InstrumentClient(client, out)

	_, err := client.R().Get(server.URL)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestInstrumentClientNilOutput(t *testing.T) {
	client := resty.New()
	InstrumentClient(client, nil)
}

func TestFormatRequestBodyWithoutBody(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://localhost/data", nil)
	require.NoError(t, err)
	req.GetBody = func() (io.ReadCloser, error) { return nil, nil }
	require.Equal(t, "", formatRequestBody(req))

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(`{"a":1}`)), nil
	}
	require.Equal(t, `{"a":1}`, formatRequestBody(req))
}
