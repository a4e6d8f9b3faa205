package masking

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sanitizer applies a Policy to attributes, free-text strings, and structured
// documents. It fails closed: malformed input is replaced with a fixed marker
// and no error escapes to the caller. Safe for concurrent use.
type Sanitizer struct {
	policy *Policy
}

func NewSanitizer(policy *Policy) *Sanitizer {
	return &Sanitizer{policy: policy}
}

// Policy exposes the active rule set for callers that only need the
// field-name test.
func (s *Sanitizer) Policy() *Policy {
	return s.policy
}

// Attribute sanitizes a single key/value pair. A sensitive key fully redacts
// the value regardless of its shape; otherwise string values are scanned for
// embedded sensitive substrings and non-string scalars pass through untouched.
func (s *Sanitizer) Attribute(key string, value any) any {
	if s.policy.IsSensitiveField(key) {
		return FullMask
	}
	if str, ok := value.(string); ok {
		return s.ScanAndMask(str)
	}
	return value
}

// ScanAndMask applies the ordered pattern detectors to a free-text value so
// sensitive substrings embedded in arbitrary strings (log messages, error
// text) are caught. Already-masked output is stable under re-scanning.
func (s *Sanitizer) ScanAndMask(text string) string {
	for _, rule := range s.policy.patterns {
		text = rule.re.ReplaceAllStringFunc(text, rule.mask)
	}
	return text
}

// SanitizeStructured walks a generic tree of objects, arrays, and scalars.
// Object values under a sensitive key are replaced by the redaction marker
// without descending; everything else is sanitized recursively. Any traversal
// failure yields the fixed SanitizedContent marker, never the original input.
func (s *Sanitizer) SanitizeStructured(doc any) (out any) {
	defer func() {
		if recover() != nil {
			out = SanitizedContent
		}
	}()
	return s.walk(doc)
}

// SanitizeJSON parses raw JSON, sanitizes the tree, and re-encodes it.
// Malformed input or an encoding failure yields the marker as a JSON string.
func (s *Sanitizer) SanitizeJSON(raw []byte) []byte {
	marker, _ := json.Marshal(SanitizedContent)

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return marker
	}

	clean, err := json.Marshal(s.SanitizeStructured(doc))
	if err != nil {
		return marker
	}
	return clean
}

func (s *Sanitizer) walk(node any) any {
	switch v := node.(type) {
	case nil:
		return nil
	case string:
		return s.ScanAndMask(v)
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return v
	case map[string]any:
		clean := make(map[string]any, len(v))
		for key, value := range v {
			if s.policy.IsSensitiveField(key) {
				clean[key] = RedactedMarker
				continue
			}
			clean[key] = s.walk(value)
		}
		return clean
	case []any:
		clean := make([]any, len(v))
		for i, elem := range v {
			clean[i] = s.walk(elem)
		}
		return clean
	default:
		return s.walkReflect(v)
	}
}

// walkReflect handles container types that are not plain map[string]any or
// []any, such as typed slices or string-keyed maps. Anything it cannot model
// as an object, array, or scalar is treated as unparseable and redacted.
func (s *Sanitizer) walkReflect(node any) any {
	rv := reflect.ValueOf(node)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return SanitizedContent
		}
		clean := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			if s.policy.IsSensitiveField(key) {
				clean[key] = RedactedMarker
				continue
			}
			clean[key] = s.walk(iter.Value().Interface())
		}
		return clean
	case reflect.Slice, reflect.Array:
		clean := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			clean[i] = s.walk(rv.Index(i).Interface())
		}
		return clean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return node
	case reflect.String:
		return s.ScanAndMask(rv.String())
	default:
		// Structs, channels, funcs and friends are not part of the generic
		// document model. Stringify-and-scan would leak field names, so the
		// safer outcome wins.
		return SanitizedContent
	}
}

// MaskStringer is a convenience for formatting a value and scanning the
// result, used by log handlers for values that are neither strings nor
// structured documents.
func (s *Sanitizer) MaskStringer(v any) string {
	return s.ScanAndMask(fmt.Sprint(v))
}
