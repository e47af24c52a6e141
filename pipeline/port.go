package pipeline

import "reflect"

// DataInfo declares a port: its name and the type of value it carries.
type DataInfo struct {
	Name string
	Type reflect.Type
}

// PortInfo is the declaration of a filter input or output.
type PortInfo = DataInfo

// NewPortInfo declares a port named name carrying values of type T.
func NewPortInfo[T any](name string) PortInfo {
	return PortInfo{Name: name, Type: reflect.TypeFor[T]()}
}

// Accepts reports whether v may be stored in a port of this type.
// nil is accepted by nillable types only.
func (d DataInfo) Accepts(v any) bool {
	if d.Type == nil {
		return true
	}
	if v == nil {
		switch d.Type.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			return true
		}
		return false
	}
	return reflect.TypeOf(v).AssignableTo(d.Type)
}

// compatible reports whether values declared as src may flow into dst.
func (d DataInfo) compatible(dst DataInfo) bool {
	if d.Type == nil || dst.Type == nil {
		return true
	}
	return d.Type.AssignableTo(dst.Type)
}

// PortData is a resolved value together with the port it travelled on.
// Empty is set when the producing promise was flushed.
type PortData struct {
	Name  string
	Type  reflect.Type
	Value any
	Empty bool
}

// DataAs extracts the value with a type check. A mismatch is a
// programming error and panics with ErrTypeMismatch.
func DataAs[T any](d PortData) T {
	if d.Value == nil {
		var zero T
		return zero
	}
	v, ok := d.Value.(T)
	if !ok {
		panic(typeMismatch(d.Name, reflect.TypeFor[T](), reflect.TypeOf(d.Value)))
	}
	return v
}
