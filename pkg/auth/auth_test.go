package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "0", r.PostForm.Get("remember_me"))

		if r.PostForm.Get("login_username") != "reader" || r.PostForm.Get("login_password") != "secret" {
			fmt.Fprint(w, `<html><head><title>Login - MangaDex</title></head></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "mangadex_session", Value: "s3ss10n", Path: "/", MaxAge: 3600})
		fmt.Fprint(w, `<html><head><title>Home - MangaDex</title></head></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLoginSuccess(t *testing.T) {
	server := loginServer(t)
	jar := NewJar()
	client := &http.Client{Jar: jar}

	err := Login(context.Background(), client, server.URL+"/login", Credentials{Username: "reader", Password: "secret"})
	require.NoError(t, err)

	u, _ := url.Parse(server.URL)
	cookies := jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "s3ss10n", cookies[0].Value)
}

func TestLoginFailure(t *testing.T) {
	server := loginServer(t)
	client := &http.Client{Jar: NewJar()}

	err := Login(context.Background(), client, server.URL+"/login", Credentials{Username: "reader", Password: "wrong"})
	assert.ErrorIs(t, err, ErrLoginFailed)

	err = Login(context.Background(), client, server.URL+"/login", Credentials{})
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestCookieStoreRoundTrip(t *testing.T) {
	server := loginServer(t)
	jar := NewJar()
	client := &http.Client{Jar: jar}
	require.NoError(t, Login(context.Background(), client, server.URL+"/login", Credentials{Username: "reader", Password: "secret"}))

	store := NewCookieStore(filepath.Join(t.TempDir(), "mangodl", "cookies.json"))
	require.NoError(t, store.Save(jar))
	assert.True(t, store.Valid())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored := NewJar()
	n, err := store.Load(restored)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u, _ := url.Parse(server.URL)
	cookies := restored.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "mangadex_session", cookies[0].Name)
}

func TestCookieStoreSkipsExpired(t *testing.T) {
	jar := NewJar()
	u, _ := url.Parse("https://mangadex.org")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "old", Value: "x", Expires: time.Now().Add(-time.Hour)},
	})

	store := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, store.Save(jar))
	assert.False(t, store.Valid())

	n, err := store.Load(NewJar())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCookieStoreMissingFile(t *testing.T) {
	store := NewCookieStore(filepath.Join(t.TempDir(), "none.json"))
	assert.False(t, store.Valid())

	n, err := store.Load(NewJar())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, store.Clear())
}
