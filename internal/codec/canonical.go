package codec

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"onestore/internal/recipe"
)

// Object is the in-memory representation of a TypedObject or a nested
// record: field name to dynamically-typed value. A TypedObject's recipe
// name is never a key in its own Object — it is carried alongside it
// wherever a TypedObject is passed around (see Encode/Decode).
type Object = map[string]interface{}

// CodecError reports a value that does not conform to its recipe rule.
type CodecError struct {
	Path string
	Msg  string
}

func (e *CodecError) Error() string {
	if e.Path == "" {
		return "codec: " + e.Msg
	}
	return fmt.Sprintf("codec: %s: %s", e.Path, e.Msg)
}

// HashMismatchError is returned when a caller-supplied hash disagrees with
// the hash recomputed from a loaded object's canonical encoding.
type HashMismatchError struct {
	Expected Hash
	Actual   Hash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("codec: hash mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Encode produces the canonical textual encoding of a TypedObject of the
// named recipe. Field order follows the recipe's rule order; the result is
// deterministic for equal (recipe, obj) pairs regardless of the Go map's
// iteration order or the input order of set/bag elements, which are sorted
// by element hash; array elements keep their given order.
func Encode(reg *recipe.Registry, typeName string, obj Object) ([]byte, error) {
	rec, err := reg.Get(typeName)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('O')
	writeString(&buf, typeName)
	if err := encodeFields(&buf, rec.Rules, obj, typeName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeId produces the canonical encoding used to derive a versioned
// object's IdHash: only the isId-marked fields, in recipe order, wrapped in
// a discriminator that marks the result as an id-object so it can never
// collide with a regular object encoding of the same bytes.
func EncodeId(reg *recipe.Registry, typeName string, obj Object) ([]byte, error) {
	rec, err := reg.Get(typeName)
	if err != nil {
		return nil, err
	}
	idRules := rec.IdRules()
	var buf bytes.Buffer
	buf.WriteByte('I')
	writeString(&buf, typeName)
	if err := encodeFields(&buf, idRules, obj, typeName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HashOf returns the content Hash of obj under typeName, encoding it
// canonically first.
func HashOf(reg *recipe.Registry, typeName string, obj Object) (Hash, error) {
	b, err := Encode(reg, typeName, obj)
	if err != nil {
		return "", err
	}
	return Sum(b), nil
}

// IdHashOf returns the IdHash of obj under typeName.
func IdHashOf(reg *recipe.Registry, typeName string, obj Object) (IdHash, error) {
	b, err := EncodeId(reg, typeName, obj)
	if err != nil {
		return "", err
	}
	return SumId(b), nil
}

func encodeFields(buf *bytes.Buffer, rules []recipe.Rule, obj Object, path string) error {
	present := make([]recipe.Rule, 0, len(rules))
	for _, ru := range rules {
		v, ok := obj[ru.ItemProp]
		if !ok || v == nil {
			if !ru.Optional {
				return &CodecError{Path: path + "." + ru.ItemProp, Msg: "missing required field"}
			}
			continue
		}
		present = append(present, ru)
	}
	writeUint(buf, uint64(len(present)))
	for _, ru := range present {
		writeString(buf, ru.ItemProp)
		if err := encodeValue(buf, ru, obj[ru.ItemProp], path+"."+ru.ItemProp); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(buf *bytes.Buffer, ru recipe.Rule, v interface{}, path string) error {
	switch ru.ItemType {
	case recipe.TypeString, recipe.TypeStringifiable:
		s, ok := asString(v)
		if !ok {
			return &CodecError{Path: path, Msg: "expected string"}
		}
		buf.WriteByte('s')
		writeString(buf, norm.NFC.String(s))
		return nil

	case recipe.TypeInteger:
		n, ok := asInt(v)
		if !ok {
			return &CodecError{Path: path, Msg: "expected integer"}
		}
		buf.WriteByte('i')
		writeString(buf, strconv.FormatInt(n, 10))
		return nil

	case recipe.TypeNumber:
		f, ok := asFloat(v)
		if !ok {
			return &CodecError{Path: path, Msg: "expected number"}
		}
		buf.WriteByte('f')
		writeString(buf, strconv.FormatFloat(f, 'g', -1, 64))
		return nil

	case recipe.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return &CodecError{Path: path, Msg: "expected boolean"}
		}
		buf.WriteByte('b')
		if b {
			buf.WriteByte('1')
		} else {
			buf.WriteByte('0')
		}
		return nil

	case recipe.TypeReferenceToId, recipe.TypeReferenceToObj, recipe.TypeReferenceToClob, recipe.TypeReferenceToBlob:
		s, ok := asString(v)
		if !ok || !isHex64(s) {
			return &CodecError{Path: path, Msg: "expected 64-char hex hash"}
		}
		buf.WriteByte('h')
		buf.WriteString(s)
		return nil

	case recipe.TypeArray:
		items, ok := asSlice(v)
		if !ok {
			return &CodecError{Path: path, Msg: "expected array"}
		}
		return encodeContainer(buf, ru, items, path, false)

	case recipe.TypeBag, recipe.TypeSet:
		items, ok := asSlice(v)
		if !ok {
			return &CodecError{Path: path, Msg: "expected bag/set"}
		}
		return encodeContainer(buf, ru, items, path, true)

	case recipe.TypeMap:
		m, ok := v.(map[string]interface{})
		if !ok {
			return &CodecError{Path: path, Msg: "expected map"}
		}
		return encodeMap(buf, ru, m, path)

	case recipe.TypeObject:
		obj, ok := v.(Object)
		if !ok {
			return &CodecError{Path: path, Msg: "expected object"}
		}
		buf.WriteByte('o')
		return encodeFields(buf, ru.Rules, obj, path)

	default:
		return &CodecError{Path: path, Msg: "unknown item type " + string(ru.ItemType)}
	}
}

func encodeContainer(buf *bytes.Buffer, ru recipe.Rule, items []interface{}, path string, sortByHash bool) error {
	if ru.Element == nil {
		return &CodecError{Path: path, Msg: "container rule missing element type"}
	}
	encoded := make([][]byte, 0, len(items))
	for i, it := range items {
		var eb bytes.Buffer
		if err := encodeValue(&eb, *ru.Element, it, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
		encoded = append(encoded, eb.Bytes())
	}
	if sortByHash {
		sort.Slice(encoded, func(i, j int) bool {
			hi := sha256.Sum256(encoded[i])
			hj := sha256.Sum256(encoded[j])
			return bytes.Compare(hi[:], hj[:]) < 0
		})
	}
	buf.WriteByte('a')
	writeUint(buf, uint64(len(encoded)))
	for _, eb := range encoded {
		buf.Write(eb)
	}
	return nil
}

func encodeMap(buf *bytes.Buffer, ru recipe.Rule, m map[string]interface{}, path string) error {
	if ru.Element == nil {
		return &CodecError{Path: path, Msg: "map rule missing value type"}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('m')
	writeUint(buf, uint64(len(keys)))
	for _, k := range keys {
		writeString(buf, k)
		if err := encodeValue(buf, *ru.Element, m[k], path+"["+k+"]"); err != nil {
			return err
		}
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint(buf, uint64(len(s)))
	buf.WriteByte(':')
	buf.WriteString(s)
}

func writeUint(buf *bytes.Buffer, n uint64) {
	buf.WriteString(strconv.FormatUint(n, 10))
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return "", false
	}
}

func asInt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		n, ok := asInt(v)
		return float64(n), ok
	}
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}
