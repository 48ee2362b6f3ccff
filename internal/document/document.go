// Package document implements an order-preserving JSON tree. Object key
// order and numeric literals survive a parse/encode round trip untouched,
// which is what lets outputs be compared against inputs byte-for-byte.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"recontext/internal/domain"
)

// Kind identifies the JSON value a node holds.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindString
	KindNumber
	KindBool
	KindNull
)

// String returns the JSON type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Document is one node of the tree. Objects keep their keys in insertion
// order; numbers keep the literal text they were parsed from.
type Document struct {
	kind   Kind
	keys   []string
	fields map[string]*Document
	items  []*Document
	str    string
	num    json.Number
	boolv  bool
}

// NewObject returns an empty object node.
func NewObject() *Document {
	return &Document{kind: KindObject, fields: make(map[string]*Document)}
}

// NewString returns a string node.
func NewString(s string) *Document {
	return &Document{kind: KindString, str: s}
}

// Parse decodes a complete JSON document. Trailing content after the
// top-level value is rejected.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	doc, err := parseValue(dec)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrMalformedDocument.Code, "parse document", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, domain.NewEngineError(domain.ErrMalformedDocument.Code, "trailing content after document")
	}
	return doc, nil
}

func parseValue(dec *json.Decoder) (*Document, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return fromToken(dec, tok)
}

func fromToken(dec *json.Decoder, tok json.Token) (*Document, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				if _, exists := doc.fields[key]; !exists {
					doc.keys = append(doc.keys, key)
				}
				doc.fields[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			doc := &Document{kind: KindArray}
			for dec.More() {
				item, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				doc.items = append(doc.items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return &Document{kind: KindString, str: t}, nil
	case json.Number:
		return &Document{kind: KindNumber, num: t}, nil
	case bool:
		return &Document{kind: KindBool, boolv: t}, nil
	case nil:
		return &Document{kind: KindNull}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// Kind returns the node's JSON type.
func (d *Document) Kind() Kind { return d.kind }

// Keys returns an object's keys in document order. The slice is shared;
// callers must not modify it.
func (d *Document) Keys() []string { return d.keys }

// Field returns the value stored under key on an object node.
func (d *Document) Field(key string) (*Document, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Len returns an array's element count.
func (d *Document) Len() int { return len(d.items) }

// Item returns the i-th element of an array node.
func (d *Document) Item(i int) *Document { return d.items[i] }

// StringValue returns the value of a string node.
func (d *Document) StringValue() string { return d.str }

// NumberLiteral returns the exact literal text of a number node.
func (d *Document) NumberLiteral() string { return string(d.num) }

// BoolValue returns the value of a boolean node.
func (d *Document) BoolValue() bool { return d.boolv }

// SetField sets key to value on an object node. A new key is appended after
// the existing ones; an existing key keeps its position.
func (d *Document) SetField(key string, value *Document) error {
	if d.kind != KindObject {
		return domain.NewEngineError(domain.ErrNotAnObject.Code, fmt.Sprintf("cannot set key %q on %s node", key, d.kind))
	}
	if d.fields == nil {
		d.fields = make(map[string]*Document)
	}
	if _, ok := d.fields[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = value
	return nil
}

// Subset returns a new object holding only the requested keys, in the
// receiver's key order. Values are shared with the receiver, not cloned.
func (d *Document) Subset(keys []string) (*Document, error) {
	if d.kind != KindObject {
		return nil, domain.NewEngineError(domain.ErrNotAnObject.Code, fmt.Sprintf("cannot take subset of %s node", d.kind))
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := d.fields[k]; !ok {
			return nil, domain.NewEngineError(domain.ErrPathNotFound.Code, fmt.Sprintf("key %q not present", k))
		}
		want[k] = true
	}
	out := NewObject()
	for _, k := range d.keys {
		if want[k] {
			out.keys = append(out.keys, k)
			out.fields[k] = d.fields[k]
		}
	}
	return out, nil
}

// Clone returns a deep copy of the node.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{kind: d.kind, str: d.str, num: d.num, boolv: d.boolv}
	switch d.kind {
	case KindObject:
		out.keys = append([]string(nil), d.keys...)
		out.fields = make(map[string]*Document, len(d.fields))
		for k, v := range d.fields {
			out.fields[k] = v.Clone()
		}
	case KindArray:
		out.items = make([]*Document, len(d.items))
		for i, v := range d.items {
			out.items[i] = v.Clone()
		}
	}
	return out
}

// EqualsDeep reports whether two trees hold the same values. Object key
// order is not significant, but array order and numeric literals are:
// 1 and 1.0 are different values here.
func (d *Document) EqualsDeep(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.kind != other.kind {
		return false
	}
	switch d.kind {
	case KindObject:
		if len(d.keys) != len(other.keys) {
			return false
		}
		for _, k := range d.keys {
			ov, ok := other.fields[k]
			if !ok || !d.fields[k].EqualsDeep(ov) {
				return false
			}
		}
		return true
	case KindArray:
		if len(d.items) != len(other.items) {
			return false
		}
		for i := range d.items {
			if !d.items[i].EqualsDeep(other.items[i]) {
				return false
			}
		}
		return true
	case KindString:
		return d.str == other.str
	case KindNumber:
		return d.num == other.num
	case KindBool:
		return d.boolv == other.boolv
	default:
		return true
	}
}

// JSON returns the compact encoding with keys in document order.
func (d *Document) JSON() []byte {
	var buf bytes.Buffer
	d.encode(&buf, "", 0)
	return buf.Bytes()
}

// IndentJSON returns the encoding indented by two spaces per level.
func (d *Document) IndentJSON() []byte {
	var buf bytes.Buffer
	d.encode(&buf, "  ", 0)
	return buf.Bytes()
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.JSON(), nil
}

func (d *Document) encode(buf *bytes.Buffer, indent string, depth int) {
	pretty := indent != ""
	switch d.kind {
	case KindObject:
		buf.WriteByte('{')
		for i, k := range d.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if pretty {
				buf.WriteByte('\n')
				writeIndent(buf, indent, depth+1)
			}
			writeQuoted(buf, k)
			buf.WriteByte(':')
			if pretty {
				buf.WriteByte(' ')
			}
			d.fields[k].encode(buf, indent, depth+1)
		}
		if pretty && len(d.keys) > 0 {
			buf.WriteByte('\n')
			writeIndent(buf, indent, depth)
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range d.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if pretty {
				buf.WriteByte('\n')
				writeIndent(buf, indent, depth+1)
			}
			item.encode(buf, indent, depth+1)
		}
		if pretty && len(d.items) > 0 {
			buf.WriteByte('\n')
			writeIndent(buf, indent, depth)
		}
		buf.WriteByte(']')
	case KindString:
		writeQuoted(buf, d.str)
	case KindNumber:
		buf.WriteString(string(d.num))
	case KindBool:
		if d.boolv {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNull:
		buf.WriteString("null")
	}
}

func writeIndent(buf *bytes.Buffer, indent string, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString(indent)
	}
}

func writeQuoted(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
