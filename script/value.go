/*
 * MIT License
 *
 * Copyright (c) 2024 Dr.NP
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package script

// Kind enumerates the fixed marshalling schema between core values and
// scripting-host values.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindBool
	KindBytes
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindBytes:
		return "bytes"
	case KindObject:
		return "object"
	}

	return "none"
}

// Value is one marshalled argument or result. The zero Value is None.
type Value struct {
	knd Kind
	num int64
	flt float64
	bln bool
	byt []byte
	obj map[string]Value
}

// None returns the null value.
func None() Value {
	return Value{}
}

func Int(i int64) Value {
	return Value{knd: KindInt, num: i}
}

func Float(f float64) Value {
	return Value{knd: KindFloat, flt: f}
}

func Bool(b bool) Value {
	return Value{knd: KindBool, bln: b}
}

func Bytes(p []byte) Value {
	return Value{knd: KindBytes, byt: p}
}

func String(s string) Value {
	return Value{knd: KindBytes, byt: []byte(s)}
}

func Object(m map[string]Value) Value {
	return Value{knd: KindObject, obj: m}
}

func (v Value) Kind() Kind {
	return v.knd
}

func (v Value) IsNone() bool {
	return v.knd == KindNone
}

func (v Value) Int() int64 {
	return v.num
}

func (v Value) Float() float64 {
	return v.flt
}

func (v Value) Bool() bool {
	return v.bln
}

func (v Value) Bytes() []byte {
	return v.byt
}

func (v Value) StringVal() string {
	return string(v.byt)
}

func (v Value) Object() map[string]Value {
	return v.obj
}

// Get returns the member of an object value, or None.
func (v Value) Get(key string) Value {
	if v.knd != KindObject {
		return None()
	}

	return v.obj[key]
}

// Native lowers a Value into plain Go types (int64, float64, bool,
// []byte, map[string]any, nil) for hosts built on reflection.
func (v Value) Native() any {
	switch v.knd {
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.bln
	case KindBytes:
		return v.byt
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			m[k] = e.Native()
		}
		return m
	}

	return nil
}

// FromNative lifts plain Go values produced by decoders into the schema.
// Unknown types map to None.
func FromNative(i any) Value {
	switch t := i.(type) {
	case nil:
		return None()
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint64:
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromNative(e)
		}
		return Object(m)
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			if s, ok := k.(string); ok {
				m[s] = FromNative(e)
			}
		}
		return Object(m)
	}

	return None()
}
