// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/astroquery/internal/auth"
	"github.com/pdiddy/astroquery/internal/cache"
	"github.com/pdiddy/astroquery/internal/catalog"
	"github.com/pdiddy/astroquery/internal/resolve"
	"github.com/pdiddy/astroquery/internal/secrets"
	"github.com/pdiddy/astroquery/internal/tap"
	"github.com/pdiddy/astroquery/pkg/types"
)

// env bundles the clients one command invocation needs.
type env struct {
	ctx    context.Context
	stop   context.CancelFunc
	client *http.Client
	store  *cache.Store // nil when the database cannot be opened

	sessions []*auth.Session
}

// newEnv opens the local database and builds the shared HTTP client. The
// database stays open under --no-cache, which only disables response
// caching. The context is cancelled on interrupt.
func newEnv() *env {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	rt := &env{
		ctx:    ctx,
		stop:   stop,
		client: &http.Client{Timeout: cfg.HTTP.Timeout},
	}
	store, err := cache.Open(cfg.Cache)
	if err != nil {
		log.WithError(err).Warn("Local cache database unavailable")
	} else {
		rt.store = store
	}
	return rt
}

// responseCache returns the store for caching TAP responses, or nil when
// response caching is disabled.
func (rt *env) responseCache() tap.ResponseCache {
	if rt.store == nil || cfg.Cache.Disabled {
		return nil
	}
	return rt.store
}

// Close logs out of any sessions and closes the cache.
func (rt *env) Close() {
	for _, s := range rt.sessions {
		if err := s.Logout(context.Background()); err != nil {
			log.WithError(err).WithField("service", s.Service).Debug("Logout failed")
		}
	}
	if rt.store != nil {
		rt.store.Close()
	}
	rt.stop()
}

func (rt *env) resolver() *resolve.Sesame {
	return &resolve.Sesame{
		Client:     rt.client,
		UserAgent:  cfg.HTTP.UserAgent,
		MaxRetries: cfg.HTTP.MaxRetries,
	}
}

// clientOptions returns TAP client settings for queries sent through
// httpClient.
func (rt *env) clientOptions(httpClient *http.Client) catalog.ClientOptions {
	o := catalog.ClientOptions{
		HTTP:            httpClient,
		UserAgent:       cfg.HTTP.UserAgent,
		MaxRetries:      cfg.HTTP.MaxRetries,
		PollInterval:    cfg.TAP.PollInterval,
		MaxPollInterval: cfg.TAP.MaxPollInterval,
		Resolver:        rt.resolver(),
	}
	o.Cache = rt.responseCache()
	o.OnSubmit = rt.onSubmit
	return o
}

// onSubmit announces a submitted job and records it in the job registry.
func (rt *env) onSubmit(job *types.Job) {
	fmt.Fprintf(os.Stderr, "submitted job %s to %s\n", job.ID, job.Service)
	if rt.store == nil {
		return
	}
	if err := rt.store.RecordJob(rt.ctx, job); err != nil {
		log.WithError(err).Warn("Could not record job")
	}
}

// service builds the named service. Services with a login endpoint and
// stored credentials are queried through an authenticated session.
func (rt *env) service(name string) (*catalog.TAPService, error) {
	httpClient, err := rt.sessionClient(name)
	if err != nil {
		return nil, err
	}
	return catalog.ByName(name, cfg.Services, rt.clientOptions(httpClient))
}

// sessionClient returns an HTTP client logged in to service when
// credentials are stored, or the shared client otherwise.
func (rt *env) sessionClient(service string) (*http.Client, error) {
	loginURL, logoutURL, ok := catalog.LoginURLs(service, cfg.Services)
	if !ok {
		return rt.client, nil
	}
	user, password, err := secrets.Credentials(loadedSecrets, service)
	if errors.Is(err, secrets.ErrNoCredentials) {
		return rt.client, nil
	}
	if err != nil {
		return nil, err
	}

	sess, err := auth.NewSession(service, loginURL, logoutURL, cfg.HTTP.Timeout)
	if err != nil {
		return nil, err
	}
	sess.UserAgent = cfg.HTTP.UserAgent
	if err := sess.Login(rt.ctx, user, password); err != nil {
		return nil, fmt.Errorf("logging in to %s: %w", service, err)
	}
	log.WithFields(log.Fields{"service": service, "user": user}).Debug("Logged in")
	rt.sessions = append(rt.sessions, sess)
	return sess.Client, nil
}

// recordQuery adds a query to the history; failures are only logged.
func (rt *env) recordQuery(service, query string, rows int) {
	if rt.store == nil {
		return
	}
	if _, err := rt.store.RecordQuery(rt.ctx, service, query, rows); err != nil {
		log.WithError(err).Debug("Could not record query history")
	}
}
