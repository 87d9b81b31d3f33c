package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form id="login" method="post" action="/login/submit">
	<input type="hidden" name="execution" value="e1s1">
	<input id="input_username" name="username" type="text">
	<input id="input_password" name="password" type="password">
	<input type="checkbox" name="remember" value="yes">
	<input id="form_submit" type="submit" name="_eventId_submit" value="Sign in">
</form>
</body></html>`

const summaryPage = `<html><body><div class="AlertTable"><span class="species">Snowy Owl</span></div></body></html>`

func newLoginServer(t testing.TB) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/login/submit", func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		require.NoError(t, err)
		if r.PostForm.Get("execution") != "e1s1" ||
			r.PostForm.Get("_eventId_submit") != "Sign in" ||
			r.PostForm.Has("remember") ||
			r.PostForm.Get("username") != "birder" ||
			r.PostForm.Get("password") != "hunter2" {
			http.Redirect(w, r, "/login?error=true", http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/alert/summary", http.StatusFound)
	})
	mux.HandleFunc("/alert/summary", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		fmt.Fprint(w, summaryPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func login(t testing.TB, s Session, srv *httptest.Server, password string) {
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, srv.URL+"/alert/summary"))
	require.NoError(t, s.WaitReady(ctx, "#input_username", time.Second))
	require.NoError(t, s.Fill(ctx, "#input_username", "birder"))
	require.NoError(t, s.Fill(ctx, "#input_password", password))
	require.NoError(t, s.Click(ctx, "#form_submit"))
}

func TestHTTPSessionLogin(t *testing.T) {
	srv := newLoginServer(t)
	s, err := New(context.Background(), Options{Engine: EngineHTTP})
	require.NoError(t, err)
	defer s.Close()

	login(t, s, srv, "hunter2")

	ctx := context.Background()
	loc, err := s.Location(ctx)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/alert/summary", loc)

	ok, err := s.Exists(ctx, "div[class*='Alert']")
	require.NoError(t, err)
	require.True(t, ok)

	markup, err := s.HTML(ctx)
	require.NoError(t, err)
	require.Contains(t, markup, "Snowy Owl")

	capture, err := s.Screenshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "html", capture.Ext)
	require.Equal(t, markup, string(capture.Data))
}

func TestHTTPSessionLoginRejected(t *testing.T) {
	srv := newLoginServer(t)
	s, err := NewHTTP(Options{})
	require.NoError(t, err)
	defer s.Close()

	login(t, s, srv, "wrong")

	loc, err := s.Location(context.Background())
	require.NoError(t, err)
	require.True(t, strings.Contains(strings.ToLower(loc), "login"), loc)
}

func TestHTTPSessionMissingElements(t *testing.T) {
	srv := newLoginServer(t)
	s, err := NewHTTP(Options{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, srv.URL+"/login"))

	err = s.WaitReady(ctx, "#nope", time.Second)
	require.ErrorIs(t, err, ErrTimeout)

	err = s.Fill(ctx, "#nope", "x")
	require.ErrorIs(t, err, ErrNoElement)

	err = s.Click(ctx, "#nope")
	require.ErrorIs(t, err, ErrNoElement)

	ok, err := s.Exists(ctx, "#nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHTTPSessionBeforeNavigate(t *testing.T) {
	s, err := NewHTTP(Options{})
	require.NoError(t, err)

	ctx := context.Background()
	ok, err := s.Exists(ctx, "html")
	require.NoError(t, err)
	require.False(t, ok)

	loc, err := s.Location(ctx)
	require.NoError(t, err)
	require.Equal(t, "", loc)
}

func TestHTTPSessionClosed(t *testing.T) {
	s, err := NewHTTP(Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	ctx := context.Background()
	require.ErrorIs(t, s.Navigate(ctx, "http://127.0.0.1"), ErrClosed)
	_, err = s.HTML(ctx)
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.Screenshot(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestUnknownEngine(t *testing.T) {
	_, err := New(context.Background(), Options{Engine: "lynx"})
	require.Error(t, err)
}
