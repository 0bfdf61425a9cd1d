package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// defaultKeySerializer renders lookup arguments into a stable key. It knows
// the shapes entity keys take (integers, strings, composite tuples) and
// falls back to JSON for anything else.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey joins method and the rendered args with KeySeparator. The
// same arguments always produce the same key, in any process.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}

	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case *int64:
		if x == nil {
			return "nil"
		}
		return strconv.FormatInt(*x, 10)
	case *string:
		if x == nil {
			return "nil"
		}
		return *x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []any:
		return s.serializeSlice(x)
	case []string:
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = item
		}
		return s.serializeSlice(items)
	case []int64:
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = item
		}
		return s.serializeSlice(items)
	case map[string]any:
		return s.serializeMap(x)
	case fmt.Stringer:
		return x.String()
	default:
		return s.jsonFallback(v)
	}
}

func (s *defaultKeySerializer) serializeSlice(items []any) string {
	if items == nil {
		return "slice:nil"
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = s.serializeValue(item)
	}
	return fmt.Sprintf("slice[%d]:{%s}", len(items), strings.Join(parts, ","))
}

// serializeMap sorts keys so insertion order never leaks into the key.
func (s *defaultKeySerializer) serializeMap(m map[string]any) string {
	if m == nil {
		return "map:nil"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + s.serializeValue(m[k])
	}
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T", v)
	}
	return "json:" + string(data)
}
