package waf

import (
	"net/http"
	"net/url"
	"testing"
)

func TestProjectHeadersAndURI(t *testing.T) {
	u, _ := url.Parse("https://www.domain.com/login?a=1&b=2")
	r := &Request{
		Method:  "POST",
		URL:     u,
		Headers: http.Header{"User-Agent": []string{"curl/8.0"}, "Host": []string{"www.domain.com"}},
		Meta:    map[string]any{"cf.country": "T1"},
	}

	f := Project(r)

	if f["request.method"] != "POST" {
		t.Fatalf("expected method POST, got %v", f["request.method"])
	}
	if f["request.headers.user-agent"] != "curl/8.0" {
		t.Fatalf("expected lowercased header key, got %v", f["request.headers.user-agent"])
	}
	if f["derived.uri.path"] != "/login" {
		t.Fatalf("unexpected path: %v", f["derived.uri.path"])
	}
	if f["derived.uri.query.param_count"] != float64(2) {
		t.Fatalf("expected param_count 2, got %v", f["derived.uri.query.param_count"])
	}
	if f["request.cf.country"] != "T1" {
		t.Fatalf("expected meta projection, got %v", f["request.cf.country"])
	}
	if f["request.cf.threatScore"] != float64(0) {
		t.Fatalf("expected threatScore normalized to 0, got %v", f["request.cf.threatScore"])
	}
}

func TestProjectHasBody(t *testing.T) {
	u, _ := url.Parse("/")
	f := Project(&Request{URL: u, Headers: http.Header{}, ContentLength: 10})
	if f["derived.body.has_body"] != true {
		t.Fatalf("expected has_body true for content-length>0")
	}

	f = Project(&Request{URL: u, Headers: http.Header{"Transfer-Encoding": []string{"chunked"}}})
	if f["derived.body.has_body"] != true {
		t.Fatalf("expected has_body true for chunked transfer-encoding")
	}

	f = Project(&Request{URL: u, Headers: http.Header{}})
	if f["derived.body.has_body"] != false {
		t.Fatalf("expected has_body false when neither signal present")
	}
}

func TestProjectAbsentMetaStaysAbsent(t *testing.T) {
	u, _ := url.Parse("/")
	f := Project(&Request{URL: u, Headers: http.Header{}})
	if _, ok := f["request.cf.country"]; ok {
		t.Fatalf("expected request.cf.country to be absent, not null-valued")
	}
}
