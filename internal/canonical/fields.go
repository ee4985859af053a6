package canonical

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

type field struct {
	name      string
	index     []int
	omitEmpty bool
	depth     int
}

var fieldCache sync.Map // reflect.Type -> []field

// fieldsOf lista los campos serializables de un struct usando los tags `json`.
// Los structs embebidos exportados sin nombre se aplanan; ante nombres repetidos
// gana el campo menos profundo.
func fieldsOf(t reflect.Type) []field {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]field)
	}
	var all []field
	collect(t, nil, 0, &all, map[reflect.Type]bool{})

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].name != all[j].name {
			return all[i].name < all[j].name
		}
		return all[i].depth < all[j].depth
	})
	out := make([]field, 0, len(all))
	for i, f := range all {
		if i > 0 && all[i-1].name == f.name {
			continue
		}
		out = append(out, f)
	}
	fieldCache.Store(t, out)
	return out
}

func collect(t reflect.Type, prefix []int, depth int, out *[]field, visiting map[reflect.Type]bool) {
	if visiting[t] {
		return
	}
	visiting[t] = true
	defer delete(visiting, t)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous && name == "" && sf.IsExported() {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collect(ft, index, depth+1, out, visiting)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		*out = append(*out, field{
			name:      name,
			index:     index,
			omitEmpty: hasOption(opts, "omitempty") || hasOption(opts, "omitzero"),
			depth:     depth,
		})
	}
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == want {
			return true
		}
	}
	return false
}

// fieldByIndex sigue index a través de structs embebidos; ok=false si un
// puntero embebido intermedio es nil.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
