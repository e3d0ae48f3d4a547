package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Jar is a cookie jar that remembers the full cookies it was given so they
// can be written to disk with their expiry.
type Jar struct {
	*cookiejar.Jar

	mu      sync.Mutex
	cookies map[string]storedCookie
}

func NewJar() *Jar {
	jar, _ := cookiejar.New(nil)
	return &Jar{Jar: jar, cookies: make(map[string]storedCookie)}
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.Jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		sc := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			URL:      u.Scheme + "://" + u.Host,
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		key := sc.URL + "|" + c.Name
		if c.MaxAge < 0 {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = sc
	}
}

func (j *Jar) stored() []storedCookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, c)
	}
	return out
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
	URL      string    `json:"url"`
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

// CookieStore persists a Jar as JSON.
type CookieStore struct {
	path string
}

func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

func (s *CookieStore) Path() string {
	return s.path
}

func (s *CookieStore) Save(jar *Jar) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}
	raw, err := json.MarshalIndent(jar.stored(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

func (s *CookieStore) read() ([]storedCookie, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var cookies []storedCookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return cookies, nil
}

// Load restores the unexpired cookies into jar and returns how many were
// loaded. A missing file loads nothing.
func (s *CookieStore) Load(jar *Jar) (int, error) {
	cookies, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	now := time.Now()
	loaded := 0
	for _, c := range cookies {
		if c.expired(now) {
			continue
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			continue
		}
		jar.SetCookies(u, []*http.Cookie{{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}})
		loaded++
	}
	return loaded, nil
}

// Valid reports whether a saved session with at least one live cookie exists.
func (s *CookieStore) Valid() bool {
	cookies, err := s.read()
	if err != nil {
		return false
	}
	now := time.Now()
	for _, c := range cookies {
		if !c.expired(now) {
			return true
		}
	}
	return false
}

func (s *CookieStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
