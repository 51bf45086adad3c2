// Package codec converts between in-memory values and UTF-8 JSON wire bytes.
// It substitutes values the standard JSON data model cannot carry: NaN and
// infinite floats become null, timestamps become RFC 3339 strings. Values
// with no defined mapping fail with a serialization error naming the
// offending type and its path; nothing is silently dropped.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
	"github.com/Maggot4703/Crew-sub000/pkg/protocol"
)

// Encode converts a value into UTF-8 JSON bytes, applying the safe
// substitutions. Decode(Encode(v)) is a fixed point for every value that
// contains no NaN, infinity, or timestamp; values that do round-trip to the
// documented substitutes instead of failing.
func Encode(value interface{}) ([]byte, error) {
	sanitized, err := sanitize(value, "$", make(map[uintptr]struct{}))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(sanitized)
	if err != nil {
		// sanitize admits only marshalable shapes, so this is a defect in a
		// custom Marshaler somewhere inside the value
		return nil, mcperrors.Wrap(err, mcperrors.CodeSerializationError,
			"failed to marshal sanitized value",
			mcperrors.CategorySerialization, mcperrors.SeverityError)
	}
	return data, nil
}

// Decode parses wire bytes into a generic JSON value. Malformed input yields
// a protocol error carrying the byte offset and a snippet for diagnostics.
func Decode(data []byte) (interface{}, error) {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, invalidJSON(data, err)
	}
	return value, nil
}

// EncodeEnvelope validates and encodes an envelope.
func EncodeEnvelope(env *protocol.Envelope) ([]byte, error) {
	if env == nil {
		return nil, mcperrors.ValidationFailed("envelope is nil")
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return Encode(env)
}

// DecodeEnvelope parses wire bytes into an envelope. The payload items stay
// generic JSON values; interpreting them belongs to the handler.
func DecodeEnvelope(data []byte) (*protocol.Envelope, error) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, invalidJSON(data, err)
	}
	return &env, nil
}

// invalidJSON classifies an unmarshal failure, extracting the byte offset
// where the parser gave up.
func invalidJSON(data []byte, err error) error {
	var offset int64 = -1
	switch e := err.(type) {
	case *json.SyntaxError:
		offset = e.Offset
	case *json.UnmarshalTypeError:
		offset = e.Offset
	}
	return mcperrors.InvalidJSON(offset, snippet(data, offset), err)
}

// snippet returns the input around the given offset, bounded for log safety.
func snippet(data []byte, offset int64) string {
	const window = 20
	if len(data) == 0 {
		return ""
	}
	if offset < 0 || offset > int64(len(data)) {
		offset = int64(len(data))
	}
	start := offset - window
	if start < 0 {
		start = 0
	}
	end := offset + window
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return string(data[start:end])
}

// sanitize walks a value and returns an equivalent shape composed only of
// types encoding/json can marshal losslessly. path tracks the position for
// error reporting. seen holds the container pointers on the current walk
// path; a container that contains itself fails instead of recursing forever.
func sanitize(value interface{}, path string, seen map[uintptr]struct{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool, string, json.Number, json.RawMessage:
		return v, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil
		}
		return v, nil
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return f, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return v.UTC().Format(time.RFC3339), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		if err := enter(rv, path, seen); err != nil {
			return nil, err
		}
		defer leave(rv, seen)
		return sanitize(rv.Elem().Interface(), path, seen)

	case reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return sanitize(rv.Elem().Interface(), path, seen)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, mcperrors.UnsupportedType(rv.Type().String(), path)
		}
		if err := enter(rv, path, seen); err != nil {
			return nil, err
		}
		defer leave(rv, seen)
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			cleaned, err := sanitize(iter.Value().Interface(), path+"."+key, seen)
			if err != nil {
				return nil, err
			}
			out[key] = cleaned
		}
		return out, nil

	case reflect.Slice:
		if err := enter(rv, path, seen); err != nil {
			return nil, err
		}
		defer leave(rv, seen)
		return sanitizeSlice(rv, path, seen)

	case reflect.Array:
		return sanitizeSlice(rv, path, seen)

	case reflect.Struct:
		return sanitizeStruct(rv, path, seen)

	default:
		return nil, mcperrors.UnsupportedType(rv.Type().String(), path)
	}
}

// enter marks a container as being on the current walk path. A container
// already on the path means the value references itself.
func enter(rv reflect.Value, path string, seen map[uintptr]struct{}) error {
	ptr := rv.Pointer()
	if ptr == 0 {
		return nil
	}
	if _, ok := seen[ptr]; ok {
		return mcperrors.CyclicValue(path)
	}
	seen[ptr] = struct{}{}
	return nil
}

func leave(rv reflect.Value, seen map[uintptr]struct{}) {
	if ptr := rv.Pointer(); ptr != 0 {
		delete(seen, ptr)
	}
}

func sanitizeSlice(rv reflect.Value, path string, seen map[uintptr]struct{}) (interface{}, error) {
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		cleaned, err := sanitize(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i), seen)
		if err != nil {
			return nil, err
		}
		out[i] = cleaned
	}
	return out, nil
}

// sanitizeStruct walks the exported fields of a struct, honoring json tags
// for naming and omission.
func sanitizeStruct(rv reflect.Value, path string, seen map[uintptr]struct{}) (interface{}, error) {
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		omitEmpty := false
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, opts, _ := strings.Cut(tag, ",")
			if tagName == "-" && opts == "" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
			omitEmpty = strings.Contains(opts, "omitempty")
		}

		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}

		cleaned, err := sanitize(fv.Interface(), path+"."+name, seen)
		if err != nil {
			return nil, err
		}
		out[name] = cleaned
	}
	return out, nil
}
