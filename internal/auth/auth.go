// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth holds cookie-based login sessions for archives that gate
// proprietary data behind a username and password.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/pdiddy/astroquery/internal/httputil"
)

// ErrAuthFailed is returned when the service rejects the credentials.
var ErrAuthFailed = errors.New("authentication failed")

const errorBodyLimit = 512

// Session is an HTTP client whose cookie jar carries a login. Share
// Session.Client with the query and download clients of the same service.
type Session struct {
	Service   string
	LoginURL  string
	LogoutURL string
	UserAgent string

	// UserField and PasswordField name the login form fields; they default
	// to "username" and "password".
	UserField     string
	PasswordField string

	Client *http.Client

	mu   sync.Mutex
	user string
}

// NewSession returns a logged-out session with an empty cookie jar.
func NewSession(service, loginURL, logoutURL string, timeout time.Duration) (*Session, error) {
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	return &Session{
		Service:   service,
		LoginURL:  loginURL,
		LogoutURL: logoutURL,
		Client:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return jar, nil
}

// Login posts the credentials to LoginURL. Empty credentials are rejected
// without contacting the service.
func (s *Session) Login(ctx context.Context, user, password string) error {
	if strings.TrimSpace(user) == "" || password == "" {
		return fmt.Errorf("%s login: username and password are required", s.Service)
	}
	if s.LoginURL == "" {
		return fmt.Errorf("%s does not support login", s.Service)
	}

	form := url.Values{
		fieldOr(s.UserField, "username"):     {user},
		fieldOr(s.PasswordField, "password"): {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return fmt.Errorf("%s login: %w", s.Service, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w for user %s on %s", ErrAuthFailed, user, s.Service)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s login returned HTTP %d: %s", s.Service, resp.StatusCode,
			httputil.ReadErrorBody(resp.Body, errorBodyLimit))
	}

	if u, err := url.Parse(s.LoginURL); err == nil && len(s.Client.Jar.Cookies(u)) == 0 {
		return fmt.Errorf("%w for user %s on %s: no session cookie returned", ErrAuthFailed, user, s.Service)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	log.WithFields(log.Fields{"service": s.Service, "user": user}).Info("Logged in")
	return nil
}

// Logout ends the session on the service and drops the cookies. Logging
// out of a session that never logged in is a no-op.
func (s *Session) Logout(ctx context.Context) error {
	if !s.LoggedIn() {
		return nil
	}

	if s.LogoutURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.LogoutURL, nil)
		if err != nil {
			return fmt.Errorf("creating logout request: %w", err)
		}
		if s.UserAgent != "" {
			req.Header.Set("User-Agent", s.UserAgent)
		}
		resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
		if err != nil {
			return fmt.Errorf("%s logout: %w", s.Service, err)
		}
		msg := httputil.ReadErrorBody(resp.Body, errorBodyLimit)
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s logout returned HTTP %d: %s", s.Service, resp.StatusCode, msg)
		}
	}

	jar, err := newJar()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.Client.Jar = jar
	s.user = ""
	s.mu.Unlock()
	log.WithField("service", s.Service).Info("Logged out")
	return nil
}

// LoggedIn reports whether Login has succeeded since the last Logout.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != ""
}

// User returns the logged-in username, or "".
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func fieldOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
