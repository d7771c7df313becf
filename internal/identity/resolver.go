package identity

import (
	"errors"
	"net"
	"net/http"
	"strings"
)

const (
	KindPartner = "partner"
	KindAPIKey  = "api_key"
	KindIP      = "ip"
)

var ErrNoIdentity = errors.New("no caller identity found")

// Caller identifies whoever submits load batches to the API. It keys the
// per-caller throttle; it is unrelated to the customer ids inside a batch.
type Caller struct {
	Kind string
	ID   string
}

// Key is the normalized "<kind>:<id>" form.
func (c Caller) Key() string {
	return c.Kind + ":" + c.ID
}

// Resolver extracts the caller from request headers.
type Resolver struct {
	PartnerHeader string
	APIKeyHeader  string
	// TrustForwarded enables X-Forwarded-For; only safe behind a proxy
	// that overwrites the header.
	TrustForwarded bool
}

func NewResolver(trustForwarded bool) *Resolver {
	return &Resolver{
		PartnerHeader:  "X-Partner-Id",
		APIKeyHeader:   "X-API-Key",
		TrustForwarded: trustForwarded,
	}
}

// Resolve tries partner id, then api key, then client IP.
func (r *Resolver) Resolve(req *http.Request) (Caller, error) {
	if req == nil {
		return Caller{}, errors.New("nil request")
	}
	if v := strings.TrimSpace(req.Header.Get(r.PartnerHeader)); v != "" {
		return Caller{Kind: KindPartner, ID: strings.ToLower(v)}, nil
	}
	if v := strings.TrimSpace(req.Header.Get(r.APIKeyHeader)); v != "" {
		return Caller{Kind: KindAPIKey, ID: v}, nil
	}
	if r.TrustForwarded {
		if ip := firstForwarded(req.Header.Get("X-Forwarded-For")); ip != "" {
			return Caller{Kind: KindIP, ID: ip}, nil
		}
	}
	if ip := remoteIP(req.RemoteAddr); ip != "" {
		return Caller{Kind: KindIP, ID: ip}, nil
	}
	return Caller{}, ErrNoIdentity
}

func firstForwarded(value string) string {
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}

func remoteIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}
