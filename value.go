package dag

import (
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Value is the data payload of a chunk.
// It is one of Null, Bool, Number, String, Array, or Map.
// Values serialize deterministically
// (see Encode),
// so the same Value always produces the same chunk hash.
type Value interface {
	isValue()
}

type (
	// Null is the null Value.
	Null struct{}

	// Bool is a boolean Value.
	Bool bool

	// Number is a numeric Value.
	Number float64

	// String is a string Value.
	String string

	// Array is an ordered sequence of Values.
	Array []Value

	// Map is a set of Values keyed by string.
	Map map[string]Value
)

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (Array) isValue()  {}
func (Map) isValue()    {}

// Limits on the shape of a Value.
// They are the largest the CBOR decoder allows;
// PutChunk rejects anything past them
// so that every stored chunk can be decoded again.
const (
	MaxNestedLevels = 65535
	MaxArrayLen     = math.MaxInt32
	MaxMapLen       = math.MaxInt32
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Core Deterministic Encoding (RFC 8949 §4.2):
	// sorted map keys, shortest forms, definite lengths.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(errors.Wrap(err, "initializing CBOR encoder"))
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]interface{}(nil)),
		MaxNestedLevels:  MaxNestedLevels,
		MaxArrayElements: MaxArrayLen,
		MaxMapPairs:      MaxMapLen,
	}.DecMode()
	if err != nil {
		panic(errors.Wrap(err, "initializing CBOR decoder"))
	}
}

// Encode serializes v.
// Equal Values produce identical bytes.
func Encode(v Value) ([]byte, error) {
	return encMode.Marshal(Native(v))
}

// CheckLimits reports an error if v nests containers
// more than MaxNestedLevels deep,
// or holds an Array longer than MaxArrayLen
// or a Map larger than MaxMapLen.
func CheckLimits(v Value) error {
	return checkLimits(v, 1)
}

func checkLimits(v Value, level int) error {
	switch v := v.(type) {
	case Array:
		if level > MaxNestedLevels {
			return errors.Errorf("value nested more than %d levels deep", MaxNestedLevels)
		}
		if len(v) > MaxArrayLen {
			return errors.Errorf("array has %d elements, max is %d", len(v), MaxArrayLen)
		}
		for _, elt := range v {
			if err := checkLimits(elt, level+1); err != nil {
				return err
			}
		}
	case Map:
		if level > MaxNestedLevels {
			return errors.Errorf("value nested more than %d levels deep", MaxNestedLevels)
		}
		if len(v) > MaxMapLen {
			return errors.Errorf("map has %d entries, max is %d", len(v), MaxMapLen)
		}
		for _, elt := range v {
			if err := checkLimits(elt, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode parses the output of Encode.
func Decode(b []byte) (Value, error) {
	var x interface{}
	if err := decMode.Unmarshal(b, &x); err != nil {
		return nil, errors.Wrap(err, "decoding CBOR")
	}
	return ValueOf(x)
}

// Native converts v to plain Go values:
// nil, bool, float64, string, []interface{}, and map[string]interface{}.
// A nil Value converts to nil.
func Native(v Value) interface{} {
	switch v := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(v)
	case Number:
		return float64(v)
	case String:
		return string(v)
	case Array:
		out := make([]interface{}, 0, len(v))
		for _, elt := range v {
			out = append(out, Native(elt))
		}
		return out
	case Map:
		out := make(map[string]interface{}, len(v))
		for k, elt := range v {
			out[k] = Native(elt)
		}
		return out
	}
	panic(fmt.Sprintf("unknown Value type %T", v))
}

// ValueOf converts a plain Go value to a Value.
// It accepts the output of Native,
// anything encoding/json produces when decoding into an interface{},
// and the other Go integer and float types.
func ValueOf(x interface{}) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(x), nil
	case int:
		return Number(x), nil
	case int64:
		return Number(x), nil
	case uint64:
		return Number(x), nil
	case []interface{}:
		out := make(Array, 0, len(x))
		for i, elt := range x {
			v, err := ValueOf(elt)
			if err != nil {
				return nil, errors.Wrapf(err, "in array element %d", i)
			}
			out = append(out, v)
		}
		return out, nil
	case map[string]interface{}:
		out := make(Map, len(x))
		for k, elt := range x {
			v, err := ValueOf(elt)
			if err != nil {
				return nil, errors.Wrapf(err, "in map entry %q", k)
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, errors.Errorf("cannot convert %T to a Value", x)
}

// Equal tells whether a and b are deeply equal.
// A nil Value equals Null.
// Numbers compare with ==, so NaN is not equal to itself.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch a := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb
	case Number:
		bn, ok := b.(Number)
		return ok && a == bn
	case String:
		bs, ok := b.(String)
		return ok && a == bs
	case Array:
		ba, ok := b.(Array)
		if !ok || len(a) != len(ba) {
			return false
		}
		for i := range a {
			if !Equal(a[i], ba[i]) {
				return false
			}
		}
		return true
	case Map:
		bm, ok := b.(Map)
		if !ok || len(a) != len(bm) {
			return false
		}
		for k, av := range a {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}
