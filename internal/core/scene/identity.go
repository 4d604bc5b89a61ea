package scene

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Identify returns a fingerprint that stays equal for the same host object
// and changes when the host replaces it. Zero means nil.
func Identify(v any) uint64 {
	if v == nil {
		return 0
	}
	if id, ok := v.(Identified); ok {
		return id.ID()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		if rv.IsNil() {
			return 0
		}
		return xxhash.Sum64String(fmt.Sprintf("%T:%x", v, rv.Pointer()))
	default:
		return xxhash.Sum64String(fmt.Sprintf("%T:%v", v, v))
	}
}
