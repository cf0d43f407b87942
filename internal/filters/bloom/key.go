package bloom

import (
	"encoding/binary"
	"reflect"
	"unicode/utf8"
)

// Hashable is implemented by values that can be stored in a Filter.
// AppendKey appends a stable byte encoding of the value to dst and returns the
// extended slice. Equal values must produce equal encodings.
type Hashable interface {
	AppendKey(dst []byte) []byte
}

// Bytes is a raw byte key.
type Bytes []byte

func (b Bytes) AppendKey(dst []byte) []byte { return append(dst, b...) }

// String is a string key.
type String string

func (s String) AppendKey(dst []byte) []byte { return append(dst, s...) }

// Rune is a single character key, encoded as UTF-8. Rune('a') and String("a")
// address the same bits.
type Rune rune

func (r Rune) AppendKey(dst []byte) []byte { return utf8.AppendRune(dst, rune(r)) }

// Uint64 is an unsigned integer key, encoded as 8 little-endian bytes.
type Uint64 uint64

func (u Uint64) AppendKey(dst []byte) []byte { return binary.LittleEndian.AppendUint64(dst, uint64(u)) }

// Int64 is a signed integer key, encoded like Uint64.
type Int64 int64

func (i Int64) AppendKey(dst []byte) []byte { return binary.LittleEndian.AppendUint64(dst, uint64(i)) }

// KeyType is the set of plain Go types Key can wrap.
type KeyType interface {
	~string | ~[]byte | ~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Key wraps a plain value as a Hashable. Strings and byte slices keep their
// bytes; every integer kind is widened to 64 bits, so Key(int8(7)) and
// Key(uint64(7)) are the same key. Note that int32 is also rune: Key('a') is
// an integer key, use Rune for a character.
func Key[T KeyType](v T) Hashable {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String())
	case reflect.Slice:
		return Bytes(rv.Bytes())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int64(rv.Int())
	default:
		return Uint64(rv.Uint())
	}
}
