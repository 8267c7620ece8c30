// Package origin implements the origin dispatcher (C8): forwarding an
// admitted request to a route's configured origin, either an inter-service
// container or an upstream URL.
package origin

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"github.com/sentrywall/core/internal/store"
	"github.com/sentrywall/core/internal/waferr"
)

// hopByHopHeaders must never be forwarded in either direction (spec.md
// §4.8), matching the discipline a Go reverse proxy applies around a
// single-hop connection.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Dispatcher forwards requests to a route's origin.
type Dispatcher struct {
	HTTPClient *http.Client
	Docker     client.APIClient
	Log        *logrus.Entry
}

// New returns a Dispatcher. docker may be nil — service-type origins then
// fail with ORIGIN_MISCONFIG rather than panicking.
func New(docker client.APIClient, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Docker:     docker,
		Log:        log,
	}
}

// Result describes the outcome of a dispatch attempt.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Misconfig  bool
}

// Dispatch forwards req to route's configured origin. A misconfigured
// route (unresolvable service, missing URL) never returns an error —
// it returns a Result with Misconfig set so the pipeline orchestrator can
// synthesize the spec's 500 diagnostic response and ORIGIN_MISCONFIG event.
func (d *Dispatcher) Dispatch(ctx context.Context, route store.Route, req *http.Request) (Result, error) {
	switch route.OriginType {
	case "service":
		return d.dispatchService(ctx, route, req)
	case "url":
		return d.dispatchURL(ctx, route, req)
	default:
		return Result{Misconfig: true}, nil
	}
}

func (d *Dispatcher) dispatchService(ctx context.Context, route store.Route, req *http.Request) (Result, error) {
	if d.Docker == nil || route.OriginServiceName == "" {
		return Result{Misconfig: true}, nil
	}

	c, err := d.Docker.ContainerInspect(ctx, route.OriginServiceName)
	if err != nil {
		d.Log.WithError(err).WithField("container", route.OriginServiceName).Warn("origin service not found")
		return Result{Misconfig: true}, nil
	}
	if !c.State.Running {
		d.Log.WithField("container", route.OriginServiceName).Warn("origin service not running")
		return Result{Misconfig: true}, nil
	}

	ip := firstNetworkIP(c.NetworkSettings)
	if ip == "" {
		d.Log.WithField("container", route.OriginServiceName).Warn("origin service has no attached network")
		return Result{Misconfig: true}, nil
	}

	target := &url.URL{Scheme: "http", Host: ip, Path: req.URL.Path, RawQuery: req.URL.RawQuery}
	return d.roundTrip(ctx, target, req)
}

func firstNetworkIP(ns *container.NetworkSettings) string {
	if ns == nil {
		return ""
	}
	for _, net := range ns.Networks {
		if net.IPAddress != "" {
			return net.IPAddress
		}
	}
	return ""
}

func (d *Dispatcher) dispatchURL(ctx context.Context, route store.Route, req *http.Request) (Result, error) {
	if route.OriginURL == "" {
		return Result{Misconfig: true}, nil
	}
	origin, err := url.Parse(route.OriginURL)
	if err != nil || origin.Host == "" {
		return Result{Misconfig: true}, nil
	}

	target := &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: singleJoiningSlash(origin.Path, req.URL.Path), RawQuery: req.URL.RawQuery}
	return d.roundTrip(ctx, target, req)
}

// singleJoiningSlash mirrors httputil.NewSingleHostReverseProxy's path join
// so an origin_url with a path prefix composes cleanly with the request path.
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	default:
		return a + b
	}
}

func (d *Dispatcher) roundTrip(ctx context.Context, target *url.URL, req *http.Request) (Result, error) {
	outReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), req.Body)
	if err != nil {
		return Result{}, waferr.Wrap(waferr.KindUpstream, "build origin request", err)
	}
	outReq.Header = req.Header.Clone()
	outReq.Host = target.Host
	stripHopByHop(outReq.Header)

	resp, err := d.HTTPClient.Do(outReq)
	if err != nil {
		return Result{}, waferr.Wrap(waferr.KindUpstream, "origin round trip", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, waferr.Wrap(waferr.KindUpstream, "read origin response body", err)
	}

	header := resp.Header.Clone()
	stripHopByHop(header)

	return Result{StatusCode: resp.StatusCode, Header: header, Body: body}, nil
}

func stripHopByHop(h http.Header) {
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
