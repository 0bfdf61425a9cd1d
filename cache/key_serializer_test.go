package cache

import (
	"strings"
	"testing"
	"time"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

type snowflakeID int64

func (id snowflakeID) String() string { return "sf-" + time.Duration(id).String() }

func TestDefaultKeySerializer_BasicTypes(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{
			name:   "no args",
			method: "guild_config",
			args:   []any{},
			want:   "guild_config",
		},
		{
			name:   "snowflake id",
			method: "guild_config",
			args:   []any{int64(771234567890123456)},
			want:   joinWithSeparator("guild_config", "771234567890123456"),
		},
		{
			name:   "composite key",
			method: "local_member",
			args:   []any{int64(10), int64(20)},
			want:   joinWithSeparator("local_member", "10", "20"),
		},
		{
			name:   "mixed basic types",
			method: "Get",
			args:   []any{1, "hello", true, 3.14, uint8(7)},
			want:   joinWithSeparator("Get", "1", "hello", "true", "3.14", "7"),
		},
		{
			name:   "string with separator chars",
			method: "Search",
			args:   []any{"hello:world"},
			want:   joinWithSeparator("Search", "hello:world"),
		},
		{
			name:   "stringer",
			method: "Get",
			args:   []any{snowflakeID(time.Second)},
			want:   joinWithSeparator("Get", "sf-1s"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.method, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_NilAndPointers(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	id := int64(42)
	name := "n"

	tests := []struct {
		name string
		args []any
		want string
	}{
		{name: "nil", args: []any{nil}, want: joinWithSeparator("m", "nil")},
		{name: "int64 pointer", args: []any{&id}, want: joinWithSeparator("m", "42")},
		{name: "nil int64 pointer", args: []any{(*int64)(nil)}, want: joinWithSeparator("m", "nil")},
		{name: "string pointer", args: []any{&name}, want: joinWithSeparator("m", "n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializer.SerializeKey("m", tt.args...); got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Collections(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name string
		arg  any
		want string
	}{
		{name: "any slice", arg: []any{1, "a"}, want: "slice[2]:{1,a}"},
		{name: "nil slice", arg: []any(nil), want: "slice:nil"},
		{name: "string slice", arg: []string{"x", "y"}, want: "slice[2]:{x,y}"},
		{name: "int64 slice", arg: []int64{3, 4}, want: "slice[2]:{3,4}"},
		{name: "map sorted", arg: map[string]any{"b": 2, "a": 1}, want: "map[2]:{a=1,b=2}"},
		{name: "nil map", arg: map[string]any(nil), want: "map:nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := joinWithSeparator("m", tt.want)
			if got := serializer.SerializeKey("m", tt.arg); got != want {
				t.Errorf("SerializeKey() = %v, want %v", got, want)
			}
		})
	}
}

func TestDefaultKeySerializer_TimeIsUTC(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	got := serializer.SerializeKey("m", at)
	want := joinWithSeparator("m", "2024-03-01T11:00:00Z")
	if got != want {
		t.Errorf("SerializeKey() = %v, want %v", got, want)
	}
}

func TestDefaultKeySerializer_JSONFallback(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	type criteria struct {
		Guild int64 `json:"guild"`
	}
	got := serializer.SerializeKey("m", criteria{Guild: 9})
	if want := joinWithSeparator("m", `json:{"guild":9}`); got != want {
		t.Errorf("SerializeKey() = %v, want %v", got, want)
	}

	got = serializer.SerializeKey("m", make(chan int))
	if want := joinWithSeparator("m", "fallback:chan int"); got != want {
		t.Errorf("SerializeKey() = %v, want %v", got, want)
	}
}

func TestDefaultKeySerializer_Stability(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	args := []any{1, "hello", []int64{1, 2, 3}, map[string]any{"a": 1, "b": 2}}

	key1 := serializer.SerializeKey("TestMethod", args...)
	key2 := serializer.SerializeKey("TestMethod", args...)
	if key1 != key2 {
		t.Errorf("Key serialization should be stable: %v != %v", key1, key2)
	}
}

func BenchmarkDefaultKeySerializer(b *testing.B) {
	serializer := NewDefaultKeySerializer()
	args := []any{int64(771234567890123456), int64(1125899906842624001)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serializer.SerializeKey("local_member", args...)
	}
}
