// Package reflector caches reflected type metadata used for dispatch labels
// and borrow layouts.
package reflector

import (
	"reflect"
	"strings"
	"sync"
)

var cache sync.Map // reflect.Type -> TypeInfo

// TypeInfo holds the cached metadata of a reflected type.
type TypeInfo struct {
	// Name is the short, package-qualified name, e.g. "todo.AddTodo".
	Name string
	Type reflect.Type
	// Fields lists exported struct field names in declaration order. It is
	// empty for non-struct types.
	Fields []string
}

// TypeInfoOf returns TypeInfo for the dynamic type of x.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for T.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeOf((*T)(nil)).Elem())
}

func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if v, ok := cache.Load(t); ok {
		return v.(TypeInfo)
	}

	et := t
	for et.Kind() == reflect.Pointer {
		et = et.Elem()
	}

	ti := TypeInfo{
		Name: shortName(et),
		Type: et,
	}
	if et.Kind() == reflect.Struct {
		for i := 0; i < et.NumField(); i++ {
			if f := et.Field(i); f.IsExported() {
				ti.Fields = append(ti.Fields, f.Name)
			}
		}
	}

	v, _ := cache.LoadOrStore(t, ti)
	return v.(TypeInfo)
}

func shortName(t reflect.Type) string {
	name := t.Name()
	if name == "" {
		return t.String()
	}
	pkg := t.PkgPath()
	if i := strings.LastIndexByte(pkg, '/'); i >= 0 {
		pkg = pkg[i+1:]
	}
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
