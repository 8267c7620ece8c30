// Package waf implements the rule-evaluation engine: the field projector
// (C1), predicate evaluator (C2), expression evaluator (C3) and rule set
// evaluator (C4) described by the WAF core. Every function in this package
// is pure and allocation-light by design — it sits on the hot path of every
// request the gateway terminates and must never perform I/O.
package waf

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Request is the flattened view of an inbound HTTP request the field
// projector consumes. Meta carries edge-populated network/geo/bot/TLS
// signals keyed by the suffix of their canonical dotted name (e.g. the key
// "cf.country" projects to "request.cf.country").
type Request struct {
	Method        string
	URL           *url.URL
	Headers       http.Header
	ContentLength int64
	Meta          map[string]any
}

// Fields is the flat, read-only attribute map produced by Project. Absent
// keys, not nil values, represent "no data" — callers must use map
// comma-ok membership tests, never a nil check on the looked-up value.
type Fields map[string]any

// Project flattens r into the dotted-name attribute map the predicate
// evaluator (C2) operates over. It performs no I/O and never mutates r.
func Project(r *Request) Fields {
	f := make(Fields, 16+len(r.Headers)+len(r.Meta))

	f["request.method"] = r.Method
	if r.URL != nil {
		f["request.url"] = r.URL.String()
		f["derived.uri.path"] = r.URL.Path
		f["derived.uri.query.string"] = r.URL.RawQuery
		f["derived.uri.query.param_count"] = float64(len(r.URL.Query()))
	}

	hasBody := r.ContentLength > 0
	if te := r.Headers.Get("Transfer-Encoding"); strings.EqualFold(te, "chunked") {
		hasBody = true
	}
	f["derived.body.has_body"] = hasBody

	for name, values := range r.Headers {
		f["request.headers."+strings.ToLower(name)] = strings.Join(values, ", ")
	}

	for k, v := range r.Meta {
		f["request."+k] = normalizeMeta(v)
	}

	if _, ok := f["request.cf.threatScore"]; !ok {
		f["request.cf.threatScore"] = float64(0)
	}

	return f
}

// normalizeMeta coerces the edge-supplied scalar into the string/float64/
// bool triple the predicate evaluator understands, leaving already-typed
// values untouched.
func normalizeMeta(v any) any {
	switch t := v.(type) {
	case string, float64, bool, nil:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err == nil {
			return f
		}
		return string(t)
	default:
		return v
	}
}
