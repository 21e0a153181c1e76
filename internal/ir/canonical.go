package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes v as RFC 8785 style canonical JSON, the form
// rule sets are hashed in and golden tables are written in.
//
// Unlike json.Marshal, object keys are ordered by UTF-16 code units and
// strings are NFC-normalized with no HTML escaping. Null and non-finite
// floats are rejected. Integral floats print without a fraction.
//
// v may be built from string, bool, int, int64, float64, []any, []string
// and map[string]any.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("canonical JSON: null is not allowed")
	case string:
		return writeCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		return writeCanonicalNumber(buf, val)
	case []string:
		return writeCanonicalList(buf, len(val), func(i int) any { return val[i] })
	case []any:
		return writeCanonicalList(buf, len(val), func(i int) any { return val[i] })
	case map[string]any:
		return writeCanonicalObject(buf, val)
	default:
		return fmt.Errorf("canonical JSON: cannot encode %T", v)
	}
	return nil
}

// writeCanonicalNumber prints f as ECMAScript would: plain decimals for
// magnitudes in [1e-6, 1e21), exponent form elsewhere.
func writeCanonicalNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("canonical JSON: %v is not a finite number", f)
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	buf.WriteString(strconv.FormatFloat(f, format, -1, 64))
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	quoted := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(restoreLineSeparators(quoted))
	return nil
}

// restoreLineSeparators undoes encoding/json's escaping of U+2028 and
// U+2029. An escape preceded by an odd run of backslashes is literal text
// and is kept.
func restoreLineSeparators(quoted []byte) []byte {
	if !bytes.Contains(quoted, []byte(`\u202`)) {
		return quoted
	}
	out := make([]byte, 0, len(quoted))
	for i := 0; i < len(quoted); i++ {
		rest := quoted[i:]
		if len(rest) >= 6 && bytes.HasPrefix(rest, []byte(`\u202`)) && (rest[5] == '8' || rest[5] == '9') && evenBackslashes(out) {
			out = append(out, string(rune(0x2020+int(rest[5]-'0')))...)
			i += 5
			continue
		}
		out = append(out, quoted[i])
	}
	return out
}

func evenBackslashes(b []byte) bool {
	n := 0
	for i := len(b) - 1; i >= 0 && b[i] == '\\'; i-- {
		n++
	}
	return n%2 == 0
}

func writeCanonicalList(buf *bytes.Buffer, n int, at func(int) any) error {
	buf.WriteByte('[')
	for i := range n {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, at(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("%q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// compareUTF16 orders strings by UTF-16 code units. Byte order differs for
// characters above U+FFFF.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
