package sinks

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxEventSink writes event records as line-protocol points to an
// InfluxDB bucket, for deployments that want the decision log durable and
// queryable rather than just logged (spec.md §6 event sink, production
// backend).
type InfluxEventSink struct {
	client influxdb2.Client
	write  api.WriteAPI
	bucket string
	org    string
}

// NewInfluxEventSink dials url with token and returns a sink writing into
// org/bucket using the client's asynchronous, internally-batched write API.
func NewInfluxEventSink(url, token, org, bucket string) *InfluxEventSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxEventSink{
		client: client,
		write:  client.WriteAPI(org, bucket),
		bucket: bucket,
		org:    org,
	}
}

// Append enqueues rec for asynchronous write. The client library batches
// and flushes internally; Append itself never blocks on network I/O,
// matching the fire-and-forget contract the core requires of event sinks.
func (s *InfluxEventSink) Append(_ context.Context, rec EventRecord) error {
	p := write.NewPoint(
		"waf_event",
		map[string]string{
			"action":  rec.Action,
			"context": rec.Context,
		},
		map[string]any{
			"id":         rec.ID,
			"rule_id":    rec.RuleID,
			"route_host": rec.RouteHost,
			"ip":         rec.IP,
			"user_agent": rec.UserAgent,
			"country":    rec.Country,
			"asn":        rec.ASN,
			"colo":       rec.Colo,
		},
		rec.Timestamp,
	)
	s.write.WritePoint(p)
	return nil
}

// Close flushes buffered points and releases the underlying HTTP client.
func (s *InfluxEventSink) Close() {
	s.write.Flush()
	s.client.Close()
}
