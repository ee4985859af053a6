// Package canonical renderiza entidades a bytes JSON deterministas: la entrada de
// firma JWS nunca depende del orden de declaración de campos ni de los defaults
// de una librería de serialización.
//
// Reglas:
//   - claves de mapas y campos de structs ordenados lexicográficamente (bytes);
//   - Date como "YYYY-MM-DD", time.Time como RFC 3339 en UTC;
//   - decimales (decimal.Decimal, json.Number, floats) como texto decimal exacto,
//     sin ceros finales en la parte fraccionaria;
//   - campos opcionales ausentes (nil, omitempty vacío) se omiten, nunca "null";
//   - sin espacios.
package canonical

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSerializationFailure envuelve toda falla de canonicalización
// (estructura cíclica, tipo no representable, valor inválido).
var ErrSerializationFailure = errors.New("serialization_failure")

const maxDepth = 512

var (
	dateType        = reflect.TypeOf(Date{})
	timeType        = reflect.TypeOf(time.Time{})
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
	numberType      = reflect.TypeOf(json.Number(""))
	marshalerType   = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textType        = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Canonicalize devuelve la representación canónica de v.
// Es una función pura: dos valores lógicamente iguales producen los mismos bytes.
func Canonicalize(v any) ([]byte, error) {
	e := &encoder{seen: make(map[visit]struct{})}
	if err := e.value(reflect.ValueOf(v), 0); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// visit identifica un nodo referenciable en el camino actual (detección de ciclos).
type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type encoder struct {
	buf  bytes.Buffer
	seen map[visit]struct{}
}

func fail(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrSerializationFailure}, args...)...)
}

func (e *encoder) enter(v visit) error {
	if _, ok := e.seen[v]; ok {
		return fail("cyclic structure through %s", v.typ)
	}
	e.seen[v] = struct{}{}
	return nil
}

func (e *encoder) value(v reflect.Value, depth int) error {
	if depth > maxDepth {
		return fail("nesting deeper than %d", maxDepth)
	}
	if !v.IsValid() {
		e.buf.WriteString("null")
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.value(v.Elem(), depth+1)
	case reflect.Pointer:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if err := e.enter(key); err != nil {
			return err
		}
		defer delete(e.seen, key)
		return e.value(v.Elem(), depth+1)
	}

	if done, err := e.known(v, depth); done {
		return err
	}

	switch v.Kind() {
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return e.float(v)
	case reflect.String:
		e.str(v.String())
	case reflect.Slice:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			e.str(base64.StdEncoding.EncodeToString(v.Bytes()))
			return nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}
		if err := e.enter(key); err != nil {
			return err
		}
		defer delete(e.seen, key)
		return e.array(v, depth)
	case reflect.Array:
		return e.array(v, depth)
	case reflect.Map:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if err := e.enter(key); err != nil {
			return err
		}
		defer delete(e.seen, key)
		return e.mapping(v, depth)
	case reflect.Struct:
		return e.object(v, depth)
	default:
		return fail("unsupported kind %s", v.Kind())
	}
	return nil
}

// known resuelve los tipos con forma canónica propia. done=false si v no es uno.
func (e *encoder) known(v reflect.Value, depth int) (bool, error) {
	switch v.Type() {
	case dateType:
		d := v.Interface().(Date)
		if !d.Valid() {
			return true, fail("invalid calendar date %04d-%02d-%02d", d.Year, int(d.Month), d.Day)
		}
		e.str(d.String())
		return true, nil
	case timeType:
		t := v.Interface().(time.Time)
		e.str(t.UTC().Format(time.RFC3339Nano))
		return true, nil
	case decimalType:
		e.buf.WriteString(v.Interface().(decimal.Decimal).String())
		return true, nil
	case nullDecimalType:
		nd := v.Interface().(decimal.NullDecimal)
		if !nd.Valid {
			e.buf.WriteString("null")
			return true, nil
		}
		e.buf.WriteString(nd.Decimal.String())
		return true, nil
	case numberType:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return true, fail("invalid number %q", v.String())
		}
		e.buf.WriteString(d.String())
		return true, nil
	}

	if !v.CanInterface() {
		return false, nil
	}
	// métodos con receptor puntero: alcanzables si v es direccionable
	// (elemento de un puntero, campo de un struct apuntado)
	if v.CanAddr() && v.Addr().CanInterface() {
		pt := v.Addr().Type()
		if !v.Type().Implements(marshalerType) && pt.Implements(marshalerType) {
			return true, e.marshaler(v.Addr().Interface().(json.Marshaler), depth)
		}
		if !v.Type().Implements(textType) && pt.Implements(textType) {
			return true, e.text(v.Addr().Interface().(encoding.TextMarshaler))
		}
	}
	if v.Type().Implements(marshalerType) {
		return true, e.marshaler(v.Interface().(json.Marshaler), depth)
	}
	if v.Type().Implements(textType) {
		return true, e.text(v.Interface().(encoding.TextMarshaler))
	}
	return false, nil
}

func (e *encoder) text(m encoding.TextMarshaler) error {
	b, err := m.MarshalText()
	if err != nil {
		return fail("%T: %v", m, err)
	}
	e.str(string(b))
	return nil
}

// marshaler re-canonicaliza la salida de un json.Marshaler ajeno: su JSON se
// decodifica a un árbol y se vuelve a renderizar con claves ordenadas.
func (e *encoder) marshaler(m json.Marshaler, depth int) error {
	raw, err := m.MarshalJSON()
	if err != nil {
		return fail("%T: %v", m, err)
	}
	tree, err := DecodeJSON(raw)
	if err != nil {
		return fail("%T produced invalid JSON: %v", m, err)
	}
	return e.value(reflect.ValueOf(tree), depth+1)
}

func (e *encoder) float(v reflect.Value) error {
	f := v.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fail("non-finite number %v", f)
	}
	var d decimal.Decimal
	if v.Kind() == reflect.Float32 {
		d = decimal.NewFromFloat32(float32(f))
	} else {
		d = decimal.NewFromFloat(f)
	}
	e.buf.WriteString(d.String())
	return nil
}

func (e *encoder) array(v reflect.Value, depth int) error {
	e.buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.value(v.Index(i), depth+1); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

type member struct {
	name string
	val  reflect.Value
}

func (e *encoder) mapping(v reflect.Value, depth int) error {
	members := make([]member, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		name, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		if absent(iter.Value(), false) {
			continue
		}
		members = append(members, member{name: name, val: iter.Value()})
	}
	return e.members(members, depth)
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.CanInterface() && k.Type().Implements(textType) {
		b, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", fail("map key %s: %v", k.Type(), err)
		}
		return string(b), nil
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fail("unsupported map key type %s", k.Type())
}

func (e *encoder) object(v reflect.Value, depth int) error {
	fields := fieldsOf(v.Type())
	members := make([]member, 0, len(fields))
	for _, f := range fields {
		fv, ok := fieldByIndex(v, f.index)
		if !ok || absent(fv, f.omitEmpty) {
			continue
		}
		members = append(members, member{name: f.name, val: fv})
	}
	return e.members(members, depth)
}

func (e *encoder) members(members []member, depth int) error {
	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })
	e.buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.str(m.name)
		e.buf.WriteByte(':')
		if err := e.value(m.val, depth+1); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

// str escribe un string JSON sin escapar <, > ni &.
func (e *encoder) str(s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // un string nunca falla
	e.buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
}

// absent decide si un miembro de objeto se omite.
func absent(v reflect.Value, omitEmpty bool) bool {
	// un any que guarda un puntero, mapa o slice nil tipado también es ausente;
	// omitempty sobre any solo mira si la interfaz está vacía
	if v.Kind() == reflect.Interface {
		for v.Kind() == reflect.Interface {
			if v.IsNil() {
				return true
			}
			v = v.Elem()
		}
		omitEmpty = false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return true
		}
	}
	switch v.Type() {
	case nullDecimalType:
		return !v.Interface().(decimal.NullDecimal).Valid
	case dateType:
		return v.Interface().(Date).IsZero()
	case timeType:
		if omitEmpty {
			return v.Interface().(time.Time).IsZero()
		}
	}
	if !omitEmpty {
		return false
	}
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

// DecodeJSON decodifica JSON a un árbol map/slice/escalar conservando los números
// como json.Number (texto exacto, sin pasar por float64).
func DecodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return out, nil
}
