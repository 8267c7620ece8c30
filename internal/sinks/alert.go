package sinks

import (
	"fmt"

	"github.com/containrrr/shoutrrr"
	"github.com/sirupsen/logrus"
)

// AlertNotifier sends a best-effort notification for rules flagged
// trigger_alert, fanning out through whatever service the configured
// shoutrrr URL names (Slack, Discord, email, ...). Failure to notify never
// affects request handling.
type AlertNotifier struct {
	url string
	log *logrus.Entry
}

// NewAlertNotifier returns a notifier for url, or a no-op notifier if url
// is empty.
func NewAlertNotifier(url string, log *logrus.Entry) *AlertNotifier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &AlertNotifier{url: url, log: log}
}

// Notify sends message describing a triggered rule match. The send itself
// runs on a background goroutine so a slow or unreachable notification
// service never adds latency to the request path; delivery errors are
// logged and swallowed, never surfaced to the caller.
func (n *AlertNotifier) Notify(ruleID, action, context string) {
	if n.url == "" {
		return
	}
	message := fmt.Sprintf("rule %q matched (%s) in context %q", ruleID, action, context)
	go func() {
		if err := shoutrrr.Send(n.url, message); err != nil {
			n.log.WithError(err).WithField("rule_id", ruleID).Warn("alert notification failed")
		}
	}()
}
