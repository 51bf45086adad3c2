// Package protocol defines the context envelope data model exchanged between
// clients and servers: the top-level Envelope, its DataBlocks, and the
// version gate applied to incoming envelopes.
package protocol

import (
	"time"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
)

// Version is the current semantic version of the envelope format.
const Version = "1.0.0"

// Well-known context types. The protocol itself treats context_type as an
// opaque tag; these are the tags the data layer and the server agree on.
const (
	// ContextTypeSnapshot tags an envelope carrying a tabular data snapshot.
	ContextTypeSnapshot = "application_data_snapshot"

	// ContextTypeError tags an envelope reporting a failed exchange. Its
	// payload is empty and metadata.description holds the message.
	ContextTypeError = "error"
)

// Envelope is the top-level object that crosses the wire.
type Envelope struct {
	Version     string      `json:"version"`
	ContextType string      `json:"context_type"`
	Payload     []DataBlock `json:"payload"`
	Metadata    Metadata    `json:"metadata"`
}

// DataBlock is one named group of items inside an envelope's payload.
type DataBlock struct {
	DataSourceIdentifier string        `json:"data_source_identifier"`
	ItemCount            int           `json:"item_count"`
	Items                []interface{} `json:"items"`
}

// Metadata carries the envelope's timestamp and free-form description.
type Metadata struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// NewEnvelope creates an envelope of the given context type, stamped with the
// current protocol version and time.
func NewEnvelope(contextType, description string, blocks ...DataBlock) *Envelope {
	if blocks == nil {
		blocks = []DataBlock{}
	}
	return &Envelope{
		Version:     Version,
		ContextType: contextType,
		Payload:     blocks,
		Metadata: Metadata{
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Description: description,
		},
	}
}

// NewErrorEnvelope creates the envelope a server sends back when an exchange
// fails: context_type "error", empty payload, the message in
// metadata.description.
func NewErrorEnvelope(description string) *Envelope {
	return NewEnvelope(ContextTypeError, description)
}

// NewDataBlock wraps items into a block with a consistent item count.
func NewDataBlock(dataSourceIdentifier string, items []interface{}) DataBlock {
	if items == nil {
		items = []interface{}{}
	}
	return DataBlock{
		DataSourceIdentifier: dataSourceIdentifier,
		ItemCount:            len(items),
		Items:                items,
	}
}

// IsError reports whether the envelope carries an error response.
func (e *Envelope) IsError() bool {
	return e.ContextType == ContextTypeError
}

// Validate checks the envelope's structural invariants: a non-empty version,
// and for every block a non-empty data_source_identifier and an item_count
// that matches the number of items.
func (e *Envelope) Validate() error {
	if e.Version == "" {
		return mcperrors.ValidationFailed("envelope version is empty")
	}
	for i, block := range e.Payload {
		if err := block.Validate(); err != nil {
			if perr, ok := mcperrors.AsProtocolError(err); ok {
				return perr.WithDetail(blockPath(i))
			}
			return err
		}
	}
	return nil
}

// Validate checks the block's invariants.
func (b *DataBlock) Validate() error {
	if b.DataSourceIdentifier == "" {
		return mcperrors.ValidationFailed("data_source_identifier is empty")
	}
	if b.ItemCount != len(b.Items) {
		return mcperrors.ValidationFailed(
			itemCountMismatch(b.ItemCount, len(b.Items)))
	}
	return nil
}
