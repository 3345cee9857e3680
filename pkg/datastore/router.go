// Package datastore provides the connection providers behind `db connect`.
package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/DrSkyle/vitool/pkg/session"
)

// Router picks a provider by URL scheme. A leading "jdbc:" is ignored.
type Router struct {
	providers map[string]session.Provider
}

// NewRouter returns a router with the built-in SQLite and Redis providers.
func NewRouter() *Router {
	r := &Router{providers: make(map[string]session.Provider)}
	r.Register("sqlite", NewSQLProvider())
	r.Register("redis", RedisProvider{})
	r.Register("rediss", RedisProvider{})
	return r
}

// Register maps a scheme to a provider.
func (r *Router) Register(scheme string, p session.Provider) {
	r.providers[strings.ToLower(scheme)] = p
}

// Schemes lists the registered schemes.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.providers))
	for s := range r.providers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open implements session.Provider.
func (r *Router) Open(ctx context.Context, url, username, password string) (session.Handle, error) {
	scheme := Scheme(url)
	p, ok := r.providers[scheme]
	if !ok {
		return nil, fmt.Errorf("no provider for %q, supported schemes are: %s", url, strings.Join(r.Schemes(), ", "))
	}
	return p.Open(ctx, url, username, password)
}

// Scheme returns the lower-cased scheme of url, without any jdbc: prefix.
func Scheme(url string) string {
	u := strings.TrimPrefix(url, "jdbc:")
	i := strings.Index(u, ":")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(u[:i])
}
