// Package auth logs into the site and keeps the session cookies between runs.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HomeTitle is the page title the site answers with after a good login.
const HomeTitle = "Home - MangaDex"

var ErrLoginFailed = errors.New("login failed")

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// Login posts the login form with client. On success the session cookies are
// left in the client's jar.
func Login(ctx context.Context, client *http.Client, loginURL string, creds Credentials) error {
	if creds.Empty() {
		return fmt.Errorf("%w: missing username or password", ErrLoginFailed)
	}

	form := url.Values{
		"login_username": {creds.Username},
		"login_password": {creds.Password},
		"remember_me":    {"0"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("login response: %w", err)
	}

	title, err := pageTitle(body)
	if err != nil {
		return fmt.Errorf("login response: %w", err)
	}
	if title != HomeTitle {
		return fmt.Errorf("%w as %s (landed on %q)", ErrLoginFailed, creds.Username, title)
	}
	return nil
}

func pageTitle(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}
