// Package telemetry wires the process-wide OpenTelemetry providers and the
// Prometheus collectors exposed on the metrics endpoint. Attribute values
// derived from request content are redacted before export; the audit trail,
// not telemetry, is the record of what a request contained.
package telemetry
