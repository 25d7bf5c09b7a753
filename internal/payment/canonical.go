package payment

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/go-faster/jx"
)

// CanonicalWithout re-encodes a JSON object with the top-level key omitted.
// Keys keep their original order and strings use the gateway's escaping
// (slashes and non-ASCII escaped, compact separators). Number tokens are
// copied verbatim.
func CanonicalWithout(raw []byte, omit string) ([]byte, error) {
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, errors.New("payment: callback body is not a JSON object")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == omit {
			return d.Skip()
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeEscaped(&buf, string(key))
		buf.WriteByte(':')
		return encodeValue(d, &buf)
	})
	if err != nil {
		return nil, fmt.Errorf("payment: canonical json: %w", err)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(d *jx.Decoder, buf *bytes.Buffer) error {
	switch d.Next() {
	case jx.Object:
		buf.WriteByte('{')
		first := true
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeEscaped(buf, string(key))
			buf.WriteByte(':')
			return encodeValue(d, buf)
		})
		buf.WriteByte('}')
		return err
	case jx.Array:
		buf.WriteByte('[')
		first := true
		err := d.Arr(func(d *jx.Decoder) error {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			return encodeValue(d, buf)
		})
		buf.WriteByte(']')
		return err
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		writeEscaped(buf, s)
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		buf.Write(n)
		return nil
	case jx.Bool:
		v, err := d.Bool()
		if err != nil {
			return err
		}
		buf.WriteString(strconv.FormatBool(v))
		return nil
	case jx.Null:
		if err := d.Null(); err != nil {
			return err
		}
		buf.WriteString("null")
		return nil
	default:
		return errors.New("unexpected json token")
	}
}

func writeEscaped(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '/':
			buf.WriteString(`\/`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20 || r >= utf8.RuneSelf:
			units := []uint16{uint16(r)}
			if r > 0xFFFF {
				hi, lo := utf16.EncodeRune(r)
				units = []uint16{uint16(hi), uint16(lo)}
			}
			for _, u := range units {
				buf.WriteString(`\u`)
				buf.WriteByte(hex[u>>12&0xF])
				buf.WriteByte(hex[u>>8&0xF])
				buf.WriteByte(hex[u>>4&0xF])
				buf.WriteByte(hex[u&0xF])
			}
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
