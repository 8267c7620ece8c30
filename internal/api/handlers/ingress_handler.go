package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sentrywall/core/internal/pipeline"
	"github.com/sentrywall/core/internal/waf"
)

// IngressHandler is the WAF-fronted traffic entry point (spec.md §1
// "terminates inbound HTTP traffic"): every request lands here first and
// is handed to the pipeline orchestrator (C7) before any origin sees it.
type IngressHandler struct {
	pipeline *pipeline.Orchestrator
}

// NewIngressHandler returns an IngressHandler driving orchestrator.
func NewIngressHandler(orchestrator *pipeline.Orchestrator) *IngressHandler {
	return &IngressHandler{pipeline: orchestrator}
}

// edgeMetaHeaders maps the Cloudflare-style request headers an upstream
// edge is expected to set onto the meta field vocabulary's "cf.*" keys
// (spec.md §6 field vocabulary). Threat-feed/bot-management signals that
// have no simple header equivalent are left for the edge to populate via
// richer integration paths not modeled here.
var edgeMetaHeaders = map[string]string{
	"Cf-Ipcountry": "cf.country",
	"Cf-Ray":       "cf.colo",
}

// Handle projects the inbound request into a waf.Request and runs the
// pipeline, writing the resulting Decision to the response. The request
// body is left untouched so origin dispatch (C8) can still stream it
// through on an ALLOW/ORIGIN_DISPATCH outcome.
func (h *IngressHandler) Handle(c *gin.Context) {
	meta := make(map[string]any, len(edgeMetaHeaders))
	for header, key := range edgeMetaHeaders {
		if v := c.Request.Header.Get(header); v != "" {
			meta[key] = v
		}
	}

	waReq := &waf.Request{
		Method:        c.Request.Method,
		URL:           c.Request.URL,
		Headers:       c.Request.Header.Clone(),
		ContentLength: c.Request.ContentLength,
		Meta:          meta,
	}
	waReq.Headers.Set("Host", c.Request.Host)

	decision := h.pipeline.Run(c.Request, waReq)

	for name, values := range decision.Header {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	contentType := decision.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(decision.StatusCode, contentType, decision.Body)
}
