// Package pipeline implements the pipeline orchestrator (C7): the explicit
// per-request state machine driving global evaluation, host routing, route
// evaluation, origin dispatch and block-response synthesis.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentrywall/core/internal/metrics"
	"github.com/sentrywall/core/internal/origin"
	"github.com/sentrywall/core/internal/router"
	"github.com/sentrywall/core/internal/sinks"
	"github.com/sentrywall/core/internal/store"
	"github.com/sentrywall/core/internal/waf"
)

// State names a node in the C7 state machine, used only for logging/metrics
// labels; control flow itself is ordinary Go control flow below.
type State string

const (
	StateGlobalEval     State = "global_eval"
	StateRouteResolve   State = "route_resolve"
	StateRouteEval      State = "route_eval"
	StateOriginDispatch State = "origin_dispatch"
	StateBlockResponse  State = "block_response"
	StateFinalDeny      State = "final_deny"
)

// DefaultRouteBlockRuleID is reported when a route store has no matching
// ALLOW rule (default-block at the route tier, spec.md §4.7).
const DefaultRouteBlockRuleID = "default-route-block"

// DeadlineExceededRuleID is reported when the request's deadline is already
// past at a suspension point.
const DeadlineExceededRuleID = "deadline-exceeded"

// Registry is the subset of *store.Registry the orchestrator depends on.
type Registry interface {
	Global() *store.GlobalStore
	RouteStore(ctx context.Context, routeID string) (*store.TenantStore, error)
}

// Orchestrator drives C7 over a Registry, the host router, and the origin
// dispatcher.
type Orchestrator struct {
	Registry   Registry
	Dispatcher *origin.Dispatcher
	Events     sinks.EventSink
	Alerts     *sinks.AlertNotifier
}

// New returns an Orchestrator wired to its collaborators.
func New(reg Registry, dispatcher *origin.Dispatcher, events sinks.EventSink, alerts *sinks.AlertNotifier) *Orchestrator {
	return &Orchestrator{Registry: reg, Dispatcher: dispatcher, Events: events, Alerts: alerts}
}

func (o *Orchestrator) notifyIfFlagged(out waf.Outcome, tenantContext string) {
	if o.Alerts != nil && out.Matched && out.TriggerAlert {
		o.Alerts.Notify(out.RuleID, string(out.Action), tenantContext)
	}
}

// Decision is the terminal outcome of running the pipeline for one request.
type Decision struct {
	State         State
	StatusCode    int
	ContentType   string
	Body          []byte
	Header        http.Header
	MatchedRuleID string
	Action        waf.Action
	RouteID       string
	Misconfig     bool
}

// Run executes the full C7 state machine for one inbound HTTP request.
// req.Context()'s deadline is honored at every suspension point per
// spec.md §5; an already-exceeded deadline short-circuits to a synthetic
// 503 BLOCK before any store is touched.
func (o *Orchestrator) Run(req *http.Request, waReq *waf.Request) Decision {
	ctx := req.Context()
	start := time.Now()

	if deadlineExceeded(ctx) {
		return o.finish(ctx, waReq, o.timeoutDecision(), "global", "", start)
	}

	global := o.Registry.Global()
	globalOut, err := global.Evaluate(ctx, waReq)
	if err != nil {
		return o.finish(ctx, waReq, o.internalErrorDecision(err), "global", "", start)
	}

	o.notifyIfFlagged(globalOut, "global")
	if globalOut.Matched {
		metrics.IncRuleOutcome("global", string(globalOut.Action))
	}
	if globalOut.Matched && (globalOut.Action == waf.ActionBlock || globalOut.Action == waf.ActionChallenge) {
		d := o.blockDecision(ctx, "global", globalOut)
		return o.finish(ctx, waReq, d, "global", "", start)
	}
	if !globalOut.Matched {
		d := Decision{State: StateFinalDeny, StatusCode: http.StatusForbidden, ContentType: "text/html", Body: []byte(store.DefaultErrorPage.Body), MatchedRuleID: ""}
		return o.finish(ctx, waReq, d, "global", "", start)
	}

	// ALLOW (or LOG, observed as ALLOW for dispatch) + a matched admission
	// rule means a route exists for this host; resolve it.
	if deadlineExceeded(ctx) {
		return o.finish(ctx, waReq, o.timeoutDecision(), "global", "", start)
	}

	snap, err := global.GetSnapshot(ctx)
	if err != nil {
		return o.finish(ctx, waReq, o.internalErrorDecision(err), "global", "", start)
	}
	candidates := make([]router.Candidate, 0, len(snap.Routes))
	for _, r := range snap.Routes {
		candidates = append(candidates, router.Candidate{ID: r.ID, IncomingHost: r.IncomingHost, Enabled: r.Enabled})
	}
	match := router.Resolve(req.Host, candidates)
	if !match.Found {
		d := Decision{State: StateFinalDeny, StatusCode: http.StatusForbidden, ContentType: "text/html", Body: []byte(store.DefaultErrorPage.Body)}
		return o.finish(ctx, waReq, d, "global", "", start)
	}

	var route store.Route
	for _, r := range snap.Routes {
		if r.ID == match.RouteID {
			route = r
			break
		}
	}

	if deadlineExceeded(ctx) {
		return o.finish(ctx, waReq, o.timeoutDecision(), "global", route.IncomingHost, start)
	}

	routeStore, err := o.Registry.RouteStore(ctx, route.ID)
	if err != nil {
		return o.finish(ctx, waReq, o.internalErrorDecision(err), route.ID, route.IncomingHost, start)
	}
	routeOut, err := routeStore.Evaluate(ctx, waReq)
	if err != nil {
		return o.finish(ctx, waReq, o.internalErrorDecision(err), route.ID, route.IncomingHost, start)
	}

	o.notifyIfFlagged(routeOut, route.ID)
	if routeOut.Matched {
		metrics.IncRuleOutcome(route.ID, string(routeOut.Action))
	}
	if routeOut.Matched && (routeOut.Action == waf.ActionAllow || routeOut.Action == waf.ActionLog) {
		if deadlineExceeded(ctx) {
			return o.finish(ctx, waReq, o.timeoutDecision(), route.ID, route.IncomingHost, start)
		}
		d := o.dispatch(ctx, route, req, routeOut)
		return o.finish(ctx, waReq, d, route.ID, route.IncomingHost, start)
	}

	// BLOCK, CHALLENGE, or no match: default-block at the route tier.
	d := o.routeBlockDecision(ctx, route.ID, routeOut)
	return o.finish(ctx, waReq, d, route.ID, route.IncomingHost, start)
}

func deadlineExceeded(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	return ok && time.Now().After(deadline)
}

func (o *Orchestrator) timeoutDecision() Decision {
	return Decision{
		State:         StateBlockResponse,
		StatusCode:    http.StatusServiceUnavailable,
		ContentType:   "text/html",
		Body:          []byte("<h1>Service Unavailable</h1>"),
		MatchedRuleID: DeadlineExceededRuleID,
		Action:        waf.ActionBlock,
	}
}

func (o *Orchestrator) internalErrorDecision(err error) Decision {
	return Decision{
		State:         StateBlockResponse,
		StatusCode:    http.StatusInternalServerError,
		ContentType:   "text/html",
		Body:          []byte(fmt.Sprintf("<h1>Internal Error</h1><p>%s</p>", err)),
		MatchedRuleID: "internal-error",
		Action:        waf.ActionBlock,
	}
}

// blockDecision resolves the block response body via the global store's
// configured error pages, falling back to DefaultErrorPage.
func (o *Orchestrator) blockDecision(ctx context.Context, context_ string, out waf.Outcome) Decision {
	snap, err := o.Registry.Global().GetSnapshot(ctx)
	var page store.ErrorPage
	if err == nil {
		page = snap.ResolveErrorPage(out.BlockHTTPCode)
	} else {
		page = store.DefaultErrorPage
	}
	return Decision{
		State:         StateBlockResponse,
		StatusCode:    page.HTTPCode,
		ContentType:   page.ContentType,
		Body:          []byte(page.Body),
		MatchedRuleID: out.RuleID,
		Action:        out.Action,
	}
}

// routeBlockDecision covers both an explicit BLOCK/CHALLENGE match and the
// route tier's default-block-on-no-match contract (spec.md §4.7).
func (o *Orchestrator) routeBlockDecision(ctx context.Context, routeID string, out waf.Outcome) Decision {
	if !out.Matched {
		out = waf.Outcome{Matched: true, Action: waf.ActionBlock, RuleID: DefaultRouteBlockRuleID}
	}
	return o.blockDecision(ctx, routeID, out)
}

func (o *Orchestrator) dispatch(ctx context.Context, route store.Route, req *http.Request, out waf.Outcome) Decision {
	dispatchStart := time.Now()
	result, err := o.Dispatcher.Dispatch(ctx, route, req)
	metrics.ObserveOriginDispatch(route.OriginType, time.Since(dispatchStart).Seconds())
	if err != nil {
		return Decision{
			State:         StateOriginDispatch,
			StatusCode:    http.StatusBadGateway,
			ContentType:   "text/plain",
			Body:          []byte("origin error: " + err.Error()),
			MatchedRuleID: out.RuleID,
			Action:        out.Action,
			RouteID:       route.ID,
		}
	}
	if result.Misconfig {
		return Decision{
			State:         StateOriginDispatch,
			StatusCode:    http.StatusInternalServerError,
			ContentType:   "text/plain",
			Body:          []byte("origin misconfigured"),
			MatchedRuleID: out.RuleID,
			Action:        out.Action,
			RouteID:       route.ID,
			Misconfig:     true,
		}
	}
	return Decision{
		State:         StateOriginDispatch,
		StatusCode:    result.StatusCode,
		Header:        result.Header,
		Body:          result.Body,
		MatchedRuleID: out.RuleID,
		Action:        out.Action,
		RouteID:       route.ID,
	}
}

// finish emits the decision's event record asynchronously and returns it
// unchanged; the caller writes the HTTP response.
func (o *Orchestrator) finish(ctx context.Context, waReq *waf.Request, d Decision, tenantContext, routeHost string, start time.Time) Decision {
	metrics.IncRequestState(string(d.State))
	if o.Events != nil {
		rec := sinks.EventRecord{
			ID:        uuid.NewString(),
			Timestamp: start,
			Action:    eventActionFor(d),
			RuleID:    d.MatchedRuleID,
			Context:   tenantContext,
			RouteHost: routeHost,
		}
		if waReq != nil {
			rec.UserAgent = waReq.Headers.Get("User-Agent")
			rec.IP = clientIP(waReq.Headers)
			rec.Country = metaString(waReq.Meta["cf.country"])
			rec.Colo = metaString(waReq.Meta["cf.colo"])
			rec.ASN = metaString(waReq.Meta["cf.asn"])
			rec.MetaBlob = waReq.Meta
			rec.HeaderBlob = map[string][]string(waReq.Headers)
		}
		o.Events.Append(ctx, rec)
	}
	return d
}

// clientIP resolves the originating client address from the headers an
// edge proxy is expected to set, preferring X-Forwarded-For's first hop
// over the raw connecting-IP header.
func clientIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	return h.Get("Cf-Connecting-Ip")
}

// metaString coerces a projected meta value to its string form for the
// event record's scalar fields; an absent value yields "".
func metaString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func eventActionFor(d Decision) string {
	switch d.State {
	case StateOriginDispatch:
		if d.Misconfig {
			return "ORIGIN_MISCONFIG"
		}
		return "ORIGIN_DISPATCH"
	case StateFinalDeny:
		return "FINAL_DENY"
	default:
		if d.Action == waf.ActionChallenge {
			return "CHALLENGE"
		}
		return "BLOCK"
	}
}
