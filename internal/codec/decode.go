package codec

import (
	"strconv"

	"onestore/internal/recipe"
)

type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) byte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, &CodecError{Msg: "unexpected end of input"}
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readUint() (uint64, error) {
	start := c.pos
	for c.pos < len(c.data) && c.data[c.pos] >= '0' && c.data[c.pos] <= '9' {
		c.pos++
	}
	if c.pos == start {
		return 0, &CodecError{Msg: "expected digits"}
	}
	return strconv.ParseUint(string(c.data[start:c.pos]), 10, 64)
}

// readString reads a length-prefixed string: "<len>:<bytes>".
func (c *cursor) readString() (string, error) {
	n, err := c.readUint()
	if err != nil {
		return "", err
	}
	colon, err := c.byte()
	if err != nil {
		return "", err
	}
	if colon != ':' {
		return "", &CodecError{Msg: "expected ':' in length-prefixed string"}
	}
	if c.pos+int(n) > len(c.data) {
		return "", &CodecError{Msg: "string length exceeds input"}
	}
	s := string(c.data[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

func (c *cursor) readTag(expect byte) error {
	b, err := c.byte()
	if err != nil {
		return err
	}
	if b != expect {
		return &CodecError{Msg: "unexpected tag byte"}
	}
	return nil
}

// Decode parses a canonical encoding produced by Encode, returning the
// recipe's type name and the reconstructed Object.
func Decode(reg *recipe.Registry, canonical []byte) (string, Object, error) {
	c := &cursor{data: canonical}
	if err := c.readTag('O'); err != nil {
		return "", nil, err
	}
	typeName, err := c.readString()
	if err != nil {
		return "", nil, err
	}
	rec, err := reg.Get(typeName)
	if err != nil {
		return "", nil, err
	}
	obj, err := decodeFields(c, rec.Rules)
	if err != nil {
		return "", nil, err
	}
	if c.pos != len(c.data) {
		return "", nil, &CodecError{Msg: "trailing bytes after object"}
	}
	return typeName, obj, nil
}

func decodeFields(c *cursor, rules []recipe.Rule) (Object, error) {
	n, err := c.readUint()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]recipe.Rule, len(rules))
	for _, ru := range rules {
		byName[ru.ItemProp] = ru
	}
	obj := make(Object, n)
	for i := uint64(0); i < n; i++ {
		name, err := c.readString()
		if err != nil {
			return nil, err
		}
		ru, ok := byName[name]
		if !ok {
			return nil, &CodecError{Path: name, Msg: "field not present in recipe"}
		}
		v, err := decodeValue(c, ru)
		if err != nil {
			return nil, err
		}
		obj[name] = v
	}
	return obj, nil
}

func decodeValue(c *cursor, ru recipe.Rule) (interface{}, error) {
	tag, err := c.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 's':
		return c.readString()
	case 'i':
		s, err := c.readString()
		if err != nil {
			return nil, err
		}
		return strconv.ParseInt(s, 10, 64)
	case 'f':
		s, err := c.readString()
		if err != nil {
			return nil, err
		}
		return strconv.ParseFloat(s, 64)
	case 'b':
		v, err := c.byte()
		if err != nil {
			return nil, err
		}
		return v == '1', nil
	case 'h':
		if c.pos+64 > len(c.data) {
			return nil, &CodecError{Msg: "truncated hash"}
		}
		s := string(c.data[c.pos : c.pos+64])
		c.pos += 64
		if !isHex64(s) {
			return nil, &CodecError{Msg: "invalid hash bytes"}
		}
		return s, nil
	case 'a':
		if ru.Element == nil {
			return nil, &CodecError{Msg: "container value missing element rule"}
		}
		n, err := c.readUint()
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := decodeValue(c, *ru.Element)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case 'm':
		if ru.Element == nil {
			return nil, &CodecError{Msg: "map value missing element rule"}
		}
		n, err := c.readUint()
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, n)
		for i := uint64(0); i < n; i++ {
			k, err := c.readString()
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(c, *ru.Element)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case 'o':
		return decodeFields(c, ru.Rules)
	default:
		return nil, &CodecError{Msg: "unknown value tag"}
	}
}
