package mcp

import (
	"github.com/Maggot4703/Crew-sub000/pkg/builder"
	"github.com/Maggot4703/Crew-sub000/pkg/client"
	"github.com/Maggot4703/Crew-sub000/pkg/codec"
	"github.com/Maggot4703/Crew-sub000/pkg/protocol"
	"github.com/Maggot4703/Crew-sub000/pkg/server"
)

// Version is the current version of the envelope format.
const Version = protocol.Version

// These exports provide direct access to the core components.
var (
	// NewServer creates a new context exchange server.
	NewServer = server.New

	// DefaultServerConfig returns the default server configuration.
	DefaultServerConfig = server.DefaultConfig

	// NewClient creates a new context exchange client.
	NewClient = client.New

	// DefaultClientConfig returns the default client configuration.
	DefaultClientConfig = client.DefaultConfig

	// BuildEnvelope wraps tabular rows into a well-formed envelope.
	BuildEnvelope = builder.BuildEnvelope

	// NewEnvelope creates an envelope stamped with the current version and
	// time.
	NewEnvelope = protocol.NewEnvelope

	// NewErrorEnvelope creates the error response envelope.
	NewErrorEnvelope = protocol.NewErrorEnvelope

	// Encode converts a value into wire bytes with safe substitution.
	Encode = codec.Encode

	// Decode parses wire bytes into a generic JSON value.
	Decode = codec.Decode
)

// Handler is the server-side extension point.
type Handler = server.Handler

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc = server.HandlerFunc

// Envelope is the top-level object exchanged between client and server.
type Envelope = protocol.Envelope

// DataBlock is one named group of items inside an envelope's payload.
type DataBlock = protocol.DataBlock
