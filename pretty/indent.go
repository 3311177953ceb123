package pretty

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

var indentConfig = jsoniter.Config{IndentionStep: 4}.Froze()

const hexDigits = "0123456789abcdef"

// Indent re-serializes a JSON payload with one member per line and four
// spaces per level. Keys keep their input order, strings are escaped to ASCII
// and numbers keep their literal text. Invalid JSON returns an error.
func Indent(payload string) (string, error) {
	if err := fastjson.Validate(payload); err != nil {
		return "", errors.Wrap(err, "validate payload")
	}

	var p fastjson.Parser
	value, err := p.Parse(payload)
	if err != nil {
		return "", errors.Wrap(err, "parse payload")
	}

	w := &indentWriter{
		tokens: scanStrings(payload),
		values: map[*fastjson.Value]string{},
		keys:   map[*fastjson.Object][]string{},
	}
	w.index(value)

	w.stream = indentConfig.BorrowStream(nil)
	defer indentConfig.ReturnStream(w.stream)

	w.writeValue(value)
	if w.stream.Error != nil {
		return "", errors.Wrap(w.stream.Error, "write payload")
	}
	return string(w.stream.Buffer()), nil
}

// scanStrings returns the raw text between the quotes of every string token,
// keys included, in document order. payload must be valid JSON.
func scanStrings(payload string) []string {
	var out []string
	for i := 0; i < len(payload); i++ {
		if payload[i] != '"' {
			continue
		}
		j := i + 1
		for payload[j] != '"' {
			if payload[j] == '\\' {
				j++
			}
			j++
		}
		out = append(out, payload[i+1:j])
		i = j
	}
	return out
}

type indentWriter struct {
	stream *jsoniter.Stream
	tokens []string
	next   int
	values map[*fastjson.Value]string
	keys   map[*fastjson.Object][]string
}

func (w *indentWriter) take() string {
	tok := w.tokens[w.next]
	w.next++
	return tok
}

// index pairs every key and string value with its raw token. Visit and Array
// walk in document order, the same order scanStrings found the tokens in.
func (w *indentWriter) index(v *fastjson.Value) {
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		keys := make([]string, 0, o.Len())
		o.Visit(func(_ []byte, child *fastjson.Value) {
			keys = append(keys, w.take())
			w.index(child)
		})
		w.keys[o] = keys

	case fastjson.TypeArray:
		items, _ := v.Array()
		for _, item := range items {
			w.index(item)
		}

	case fastjson.TypeString:
		w.values[v] = w.take()
	}
}

type member struct {
	key   string
	value *fastjson.Value
}

// members flattens an object into escaped keys. A repeated key keeps its
// first position and its last value.
func (w *indentWriter) members(o *fastjson.Object) []member {
	rawKeys := w.keys[o]
	out := make([]member, 0, len(rawKeys))
	seen := map[string]int{}
	i := 0
	o.Visit(func(_ []byte, v *fastjson.Value) {
		key := escapeString(rawKeys[i])
		i++
		if idx, ok := seen[key]; ok {
			out[idx].value = v
			return
		}
		seen[key] = len(out)
		out = append(out, member{key: key, value: v})
	})
	return out
}

func (w *indentWriter) writeValue(v *fastjson.Value) {
	stream := w.stream
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		mm := w.members(o)
		if len(mm) == 0 {
			stream.WriteEmptyObject()
			return
		}
		stream.WriteObjectStart()
		for i, m := range mm {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteRaw(m.key)
			stream.WriteRaw(": ")
			w.writeValue(m.value)
		}
		stream.WriteObjectEnd()

	case fastjson.TypeArray:
		items, _ := v.Array()
		if len(items) == 0 {
			stream.WriteEmptyArray()
			return
		}
		stream.WriteArrayStart()
		for i, item := range items {
			if i > 0 {
				stream.WriteMore()
			}
			w.writeValue(item)
		}
		stream.WriteArrayEnd()

	case fastjson.TypeString:
		stream.WriteRaw(escapeString(w.values[v]))

	case fastjson.TypeTrue:
		stream.WriteTrue()

	case fastjson.TypeFalse:
		stream.WriteFalse()

	case fastjson.TypeNull:
		stream.WriteNil()

	default:
		// numbers keep their literal
		stream.WriteRaw(v.String())
	}
}

var simpleEscapes = map[byte]rune{
	'"':  '"',
	'\\': '\\',
	'/':  '/',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
}

// escapeString decodes the raw contents of a string token and writes it back
// quoted and ASCII-only. Surrogate escapes, paired or not, stay \uXXXX.
// Invalid UTF-8 bytes become \ufffd.
func escapeString(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(raw); {
		if raw[i] != '\\' {
			r, size := utf8.DecodeRuneInString(raw[i:])
			writeRune(&sb, r)
			i += size
			continue
		}

		if raw[i+1] != 'u' {
			writeRune(&sb, simpleEscapes[raw[i+1]])
			i += 2
			continue
		}

		code, _ := strconv.ParseUint(raw[i+2:i+6], 16, 32)
		i += 6
		r := rune(code)
		if utf16.IsSurrogate(r) {
			writeUnicodeEscape(&sb, r)
			continue
		}
		writeRune(&sb, r)
	}
	sb.WriteByte('"')
	return sb.String()
}

func writeRune(sb *strings.Builder, r rune) {
	switch r {
	case '"':
		sb.WriteString(`\"`)
	case '\\':
		sb.WriteString(`\\`)
	case '\n':
		sb.WriteString(`\n`)
	case '\r':
		sb.WriteString(`\r`)
	case '\t':
		sb.WriteString(`\t`)
	case '\b':
		sb.WriteString(`\b`)
	case '\f':
		sb.WriteString(`\f`)
	default:
		switch {
		case r >= 0x20 && r <= 0x7e:
			sb.WriteRune(r)
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			writeUnicodeEscape(sb, hi)
			writeUnicodeEscape(sb, lo)
		default:
			writeUnicodeEscape(sb, r)
		}
	}
}

func writeUnicodeEscape(sb *strings.Builder, r rune) {
	sb.WriteString(`\u`)
	sb.WriteByte(hexDigits[(r>>12)&0xf])
	sb.WriteByte(hexDigits[(r>>8)&0xf])
	sb.WriteByte(hexDigits[(r>>4)&0xf])
	sb.WriteByte(hexDigits[r&0xf])
}
