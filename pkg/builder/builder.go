// Package builder adapts application tabular data, rows of crew and NPC
// records, into well-formed context envelopes. It is the only piece of the
// protocol core that faces the application's data layer; it never touches
// sockets or framing.
package builder

import (
	"fmt"
	"reflect"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
	"github.com/Maggot4703/Crew-sub000/pkg/protocol"
)

// BuildEnvelope wraps rows into an envelope with a single data block. The
// block's item_count always equals the number of rows, the envelope carries
// the current protocol version, and metadata is stamped with the current
// UTC time.
//
// Rows must be object-shaped (maps or structs); individually unencodable
// cells are allowed through, the codec decides their fate at encode time.
func BuildEnvelope(dataSourceIdentifier string, rows []interface{}, contextType, description string) (*protocol.Envelope, error) {
	if dataSourceIdentifier == "" {
		return nil, mcperrors.ValidationFailed("data_source_identifier is empty")
	}
	if contextType == "" {
		contextType = protocol.ContextTypeSnapshot
	}

	for i, row := range rows {
		if !isObject(row) {
			return nil, mcperrors.ValidationFailed(
				fmt.Sprintf("row %d is %s, want an object", i, typeName(row)))
		}
	}

	block := protocol.NewDataBlock(dataSourceIdentifier, rows)
	return protocol.NewEnvelope(contextType, description, block), nil
}

// isObject reports whether a row will serialize as a JSON object.
func isObject(row interface{}) bool {
	if row == nil {
		return false
	}
	rv := reflect.ValueOf(row)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	case reflect.Struct:
		return true
	default:
		return false
	}
}

func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
