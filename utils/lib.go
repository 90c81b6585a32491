package utils

import (
	"fmt"
	"strconv"
	"unsafe"

	"github.com/oarkflow/xid"
)

// NewID returns a process-unique identifier.
func NewID() xid.ID {
	return xid.New()
}

// UnsafeString returns a string sharing b's backing array.
func UnsafeString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// UnsafeBytes returns the bytes backing s without copying.
func UnsafeBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// ToString renders scalar record values as strings.
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToInt32 coerces the numeric shapes JSON decoding and SQL drivers produce.
func ToInt32(val any) (int32, bool) {
	switch v := val.(type) {
	case int:
		return int32(v), true
	case int8:
		return int32(v), true
	case int16:
		return int32(v), true
	case int32:
		return v, true
	case int64:
		return int32(v), true
	case uint:
		return int32(v), true
	case uint8:
		return int32(v), true
	case uint16:
		return int32(v), true
	case uint32:
		return int32(v), true
	case uint64:
		return int32(v), true
	case float32:
		return int32(v), true
	case float64:
		return int32(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, false
		}
		return int32(n), true
	case fmt.Stringer:
		n, err := strconv.ParseInt(v.String(), 10, 32)
		if err != nil {
			return 0, false
		}
		return int32(n), true
	default:
		return 0, false
	}
}
