package cache

import (
	"crypto/sha256"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// CanonicalKeySerializer implements KeySerializer using reflection-based serialization.
// Struct fields and map entries are serialized in name order and strings are
// quoted, so two argument lists holding the same values always produce the same
// key no matter how they were built. The canonical text is hashed so keys stay
// short and printable whatever the arguments contain.
type CanonicalKeySerializer struct {
	namespace string
}

// NewDefaultKeySerializer creates a serializer using DefaultNamespace.
func NewDefaultKeySerializer() KeySerializer {
	return NewKeySerializer(DefaultNamespace)
}

// NewKeySerializer creates a serializer that prefixes keys with namespace.
func NewKeySerializer(namespace string) *CanonicalKeySerializer {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CanonicalKeySerializer{namespace: namespace}
}

// SerializeKey builds a cache key of the form namespace::method::digest,
// where digest is the unpadded base64url SHA-256 of the canonical form of
// method and args.
func (s *CanonicalKeySerializer) SerializeKey(method string, args ...any) string {
	sum := sha256.Sum256([]byte(s.Canonical(method, args...)))
	digest := base64.RawURLEncoding.EncodeToString(sum[:])
	return strings.Join([]string{s.namespace, toSnake(method), digest}, KeySeparator)
}

// Canonical returns the unhashed serialization that SerializeKey digests.
func (s *CanonicalKeySerializer) Canonical(method string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// serializeValue handles individual argument serialization based on type.
func (s *CanonicalKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	if rt.Implements(textMarshalerType) && !(rt.Kind() == reflect.Ptr && rv.IsNil()) {
		if text, err := v.(encoding.TextMarshaler).MarshalText(); err == nil {
			return "text:" + strconv.Quote(string(text))
		}
	}

	switch rt.Kind() {
	case reflect.Func:
		// function identity is only stable within a single process
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return "interface:nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return fmt.Sprintf("slice[%d]:{%s}", rv.Len(), s.serializeElements(rv))
	case reflect.Array:
		return fmt.Sprintf("array[%d]:{%s}", rv.Len(), s.serializeElements(rv))
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Struct:
		return s.serializeStruct(rv, rt)
	case reflect.String:
		return strconv.Quote(rv.String())
	}

	if isBasicKind(rt.Kind()) {
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

func (s *CanonicalKeySerializer) serializeElements(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}
	return strings.Join(parts, ",")
}

// serializeMap emits key=value pairs sorted by serialized key.
func (s *CanonicalKeySerializer) serializeMap(rv reflect.Value) string {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			key:   s.serializeValue(iter.Key().Interface()),
			value: s.serializeValue(iter.Value().Interface()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return fmt.Sprintf("map[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

// serializeStruct emits exported fields sorted by field name.
func (s *CanonicalKeySerializer) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	type field struct{ name, value string }

	fields := make([]field, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}
		fields = append(fields, field{name: sf.Name, value: s.serializeValue(fieldValue.Interface())})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.name + ":" + f.value
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

func isBasicKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort
func (s *CanonicalKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return "json:" + string(data)
}
