// Package sinks defines the external collaborator contracts the core
// writes to — the audit log store (§4.5) and the event log store (§4.9) —
// along with the simplest conforming adapters. Both stores themselves are
// explicitly out of scope (spec.md §1): this package only owns the
// interface the core calls and enough of an implementation to run and test
// the core end to end.
package sinks

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sentrywall/core/internal/util"
)

// AuditRecord is one committed write against a tenant store.
type AuditRecord struct {
	Actor     string
	Context   string // tenant id: "global" or a route id
	Action    string // e.g. "create_rule", "update_rule", "delete_rule", "reorder"
	TargetID  string
	Before    any
	After     any
	Timestamp time.Time
}

// AuditSink is the append-only audit log store's contract.
type AuditSink interface {
	Append(ctx context.Context, rec AuditRecord) error
}

// LogAuditSink logs audit records through the process logger. It is the
// default AuditSink: emission failure must never roll back a write (§4.5),
// and logging cannot itself fail in a way the caller need observe.
type LogAuditSink struct {
	Logger *logrus.Entry
}

// NewLogAuditSink returns an AuditSink backed by logger, or the standard
// logger if logger is nil.
func NewLogAuditSink(logger *logrus.Entry) *LogAuditSink {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogAuditSink{Logger: logger}
}

func (s *LogAuditSink) Append(_ context.Context, rec AuditRecord) error {
	s.Logger.WithFields(logrus.Fields{
		"actor":     util.SanitizeForLog(rec.Actor),
		"context":   util.SanitizeForLog(rec.Context),
		"action":    rec.Action,
		"target_id": util.SanitizeForLog(rec.TargetID),
		"before":    rec.Before,
		"after":     rec.After,
	}).Info("audit")
	return nil
}
