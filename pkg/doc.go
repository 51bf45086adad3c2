// Package pkg groups the components of the context exchange protocol.
//
// The protocol ships structured tabular context between processes over TCP as
// length-prefixed JSON envelopes. Each sub-package owns one concern:
//
//   - protocol: the envelope data model and version gate
//   - codec: JSON encoding with safe substitution of unrepresentable values
//   - framing: length-prefixed message framing over a stream connection
//   - builder: adapting application rows into well-formed envelopes
//   - client: the outbound connection and exchange API
//   - server: the listening side, concurrency cap, and handler dispatch
//   - errors: the structured error taxonomy shared by all of the above
//   - logging: leveled structured logging
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - testutil: shared test helpers
package pkg
