// Package mcp implements the context exchange protocol used by the crew data
// application to ship structured tabular context to another process over TCP
// and receive a structured response. This root package re-exports the core
// components from the sub-packages.
//
// # Overview
//
// The module consists of several sub-packages:
//
//   - pkg/protocol: The context envelope data model that crosses the wire
//   - pkg/codec: JSON encoding with safe substitution of NaN and timestamps
//   - pkg/framing: Length-prefixed message framing over a stream socket
//   - pkg/server: A concurrent TCP server dispatching envelopes to a handler
//   - pkg/client: A synchronous client for sequential exchanges
//   - pkg/builder: Adapts tabular rows into well-formed envelopes
//   - pkg/errors: The structured error taxonomy shared by all of the above
//   - pkg/logging: Structured leveled logging
//   - pkg/observability: Prometheus metrics and OpenTelemetry tracing
//
// # Wire format
//
// Every message is a 4-byte big-endian unsigned length followed by that many
// bytes of UTF-8 JSON. The JSON is always one envelope:
//
//	{
//	  "version": "1.0.0",
//	  "context_type": "application_data_snapshot",
//	  "payload": [
//	    {
//	      "data_source_identifier": "crew.csv",
//	      "item_count": 2,
//	      "items": [ {...}, {...} ]
//	    }
//	  ],
//	  "metadata": { "timestamp": "2026-08-29T12:00:00Z", "description": "..." }
//	}
//
// # Running a server
//
//	handler := mcp.HandlerFunc(func(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
//	    return protocol.NewEnvelope("ack", "received "+env.ContextType), nil
//	})
//
//	srv, err := mcp.NewServer(mcp.DefaultServerConfig(), handler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
//
// # Sending a snapshot
//
//	env, err := mcp.BuildEnvelope("crew.csv", rows, "application_data_snapshot", "crew export")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cli := mcp.NewClient(mcp.DefaultClientConfig())
//	if err := cli.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer cli.Close()
//
//	resp, err := cli.Exchange(env, 5*time.Second)
package mcp
