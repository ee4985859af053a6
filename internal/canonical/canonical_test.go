package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type investment struct {
	InvestmentID  string           `json:"investmentId"`
	ProductType   string           `json:"productType"`
	ProductName   string           `json:"productName,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	PurchaseDate  Date             `json:"purchaseDate"`
	MaturityDate  *Date            `json:"maturityDate,omitempty"`
	Profitability *decimal.Decimal `json:"profitability,omitempty"`
}

// misma entidad lógica, campos declarados en otro orden
type investmentReordered struct {
	PurchaseDate  Date             `json:"purchaseDate"`
	Profitability *decimal.Decimal `json:"profitability,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	ProductType   string           `json:"productType"`
	InvestmentID  string           `json:"investmentId"`
}

func TestCanonicalize_Example(t *testing.T) {
	inv := investment{
		InvestmentID: "INV1",
		ProductType:  "CDB",
		Amount:       decimal.RequireFromString("1000.00"),
		PurchaseDate: MustDate("2023-01-01"),
	}
	got, err := Canonicalize(inv)
	if err != nil {
		t.Fatalf("Canonicalize err: %v", err)
	}
	want := `{"amount":1000,"investmentId":"INV1","productType":"CDB","purchaseDate":"2023-01-01"}`
	if string(got) != want {
		t.Fatalf("canonical mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestCanonicalize_Deterministic(t *testing.T) {
	p := decimal.RequireFromString("12.50")
	md := MustDate("2026-03-15")
	inputs := []any{
		investment{InvestmentID: "INV9", ProductType: "LCI", Amount: decimal.NewFromInt(5), PurchaseDate: MustDate("2024-02-29"), MaturityDate: &md, Profitability: &p},
		map[string]any{"b": []any{1, "x", nil}, "a": map[string]any{"z": true, "y": 1.5}},
		[]string{"c", "a", "b"},
		"plain",
	}
	for _, in := range inputs {
		a, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("first call err: %v", err)
		}
		b, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("second call err: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("non deterministic output: %s vs %s", a, b)
		}
	}
}

func TestCanonicalize_FieldOrderIndependent(t *testing.T) {
	p := decimal.RequireFromString("0.1250")
	a := investment{InvestmentID: "INV2", ProductType: "CDB", Amount: decimal.RequireFromString("250.5"), PurchaseDate: MustDate("2023-06-30"), Profitability: &p}
	b := investmentReordered{InvestmentID: "INV2", ProductType: "CDB", Amount: decimal.RequireFromString("250.50"), PurchaseDate: MustDate("2023-06-30"), Profitability: &p}

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ca, cb) {
		t.Fatalf("struct field order leaked:\n%s\n%s", ca, cb)
	}

	// y también coincide con el árbol decodificado del JSON equivalente
	tree, err := DecodeJSON([]byte(`{ "purchaseDate": "2023-06-30", "amount": 250.500, "profitability": 0.125, "productType": "CDB", "investmentId": "INV2" }`))
	if err != nil {
		t.Fatal(err)
	}
	ct, err := Canonicalize(tree)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ca, ct) {
		t.Fatalf("decoded tree differs:\n%s\n%s", ca, ct)
	}
}

func TestCanonicalize_MapKeysSorted(t *testing.T) {
	got, err := Canonicalize(map[string]any{"b": 1, "a": 2, "aa": 3, "B": 4})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"B":4,"a":2,"aa":3,"b":1}` {
		t.Fatalf("got %s", got)
	}
}

func TestCanonicalize_NestedByCustomer(t *testing.T) {
	portfolios := map[string][]investment{
		"98765432100": {{InvestmentID: "INV3", ProductType: "LCA", Amount: decimal.NewFromInt(10), PurchaseDate: MustDate("2022-12-01")}},
		"12345678901": {},
	}
	got, err := Canonicalize(portfolios)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"12345678901":[],"98765432100":[{"amount":10,"investmentId":"INV3","productType":"LCA","purchaseDate":"2022-12-01"}]}`
	if string(got) != want {
		t.Fatalf("got %s", got)
	}
}

func TestCanonicalize_Decimals(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{decimal.RequireFromString("1000.00"), "1000"},
		{decimal.RequireFromString("0.10"), "0.1"},
		{decimal.RequireFromString("-3.14159"), "-3.14159"},
		{json.Number("1e3"), "1000"},
		{json.Number("10.50"), "10.5"},
		{0.1, "0.1"},
		{float32(2.5), "2.5"},
		{1000.0, "1000"},
		{int64(-7), "-7"},
		{uint8(200), "200"},
	}
	for _, c := range cases {
		got, err := Canonicalize(c.in)
		if err != nil {
			t.Fatalf("%v: %v", c.in, err)
		}
		if string(got) != c.want {
			t.Fatalf("%#v: got %s want %s", c.in, got, c.want)
		}
	}
}

func TestCanonicalize_DatesAndTimes(t *testing.T) {
	got, err := Canonicalize(struct {
		D Date      `json:"d"`
		T time.Time `json:"t"`
	}{
		D: DateOf(time.Date(2023, 1, 1, 23, 59, 0, 0, time.FixedZone("BRT", -3*3600))),
		T: time.Date(2023, 1, 1, 21, 0, 0, 0, time.FixedZone("BRT", -3*3600)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"d":"2023-01-01","t":"2023-01-02T00:00:00Z"}` {
		t.Fatalf("got %s", got)
	}

	if _, err := Canonicalize(Date{Year: 2023, Month: 2, Day: 30}); !errors.Is(err, ErrSerializationFailure) {
		t.Fatalf("expected serialization failure for invalid date, got %v", err)
	}
	if _, err := Canonicalize(Date{Year: 12023, Month: 1, Day: 1}); !errors.Is(err, ErrSerializationFailure) {
		t.Fatalf("expected serialization failure for 5-digit year, got %v", err)
	}
}

func TestCanonicalize_AbsentFieldsOmitted(t *testing.T) {
	type opt struct {
		ID       string              `json:"id"`
		Note     *string             `json:"note"`
		Tags     []string            `json:"tags"`
		Extra    map[string]string   `json:"extra"`
		Any      any                 `json:"any"`
		Rate     decimal.NullDecimal `json:"rate"`
		Maturity Date                `json:"maturity"`
		Count    int                 `json:"count,omitempty"`
		Ignored  string              `json:"-"`
		hidden   string
	}
	got, err := Canonicalize(opt{ID: "X", Ignored: "nope", hidden: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"id":"X"}` {
		t.Fatalf("got %s", got)
	}

	// mapas: valores nil se omiten igual que los campos opcionales
	got, err = Canonicalize(map[string]any{"id": "X", "note": nil})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"id":"X"}` {
		t.Fatalf("got %s", got)
	}

	// any con un nil tipado adentro: mismo resultado que el campo ausente
	type withAny struct {
		ID    string `json:"investmentId"`
		Extra any    `json:"extra"`
	}
	for _, extra := range []any{nil, (*decimal.Decimal)(nil), (map[string]any)(nil), ([]string)(nil), any((*Date)(nil))} {
		got, err = Canonicalize(withAny{ID: "INV1", Extra: extra})
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != `{"investmentId":"INV1"}` {
			t.Fatalf("%#v: got %s", extra, got)
		}
	}
	got, err = Canonicalize(map[string]any{"a": (*investment)(nil), "b": 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"b":1}` {
		t.Fatalf("got %s", got)
	}

	// en arrays la posición importa: null se conserva
	got, err = Canonicalize([]any{nil, 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[null,1]` {
		t.Fatalf("got %s", got)
	}
}

func TestCanonicalize_NoWhitespaceNoHTMLEscape(t *testing.T) {
	got, err := Canonicalize(map[string]string{"name": "Ações <Itaú> & \"Cia\"\n"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"Ações <Itaú> & \"Cia\"\n"}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

type Base struct {
	ID string `json:"id"`
}

func TestCanonicalize_EmbeddedStructsFlattened(t *testing.T) {
	type withBase struct {
		Base
		Kind string `json:"kind"`
	}
	got, err := Canonicalize(withBase{Base: Base{ID: "C1"}, Kind: "PF"})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"id":"C1","kind":"PF"}` {
		t.Fatalf("got %s", got)
	}
}

type node struct {
	Name string `json:"name"`
	Next *node  `json:"next,omitempty"`
}

func TestCanonicalize_CycleFails(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b
	_, err := Canonicalize(a)
	if !errors.Is(err, ErrSerializationFailure) {
		t.Fatalf("expected serialization failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "cyclic") {
		t.Fatalf("unexpected error: %v", err)
	}

	m := map[string]any{}
	m["self"] = m
	if _, err := Canonicalize(m); !errors.Is(err, ErrSerializationFailure) {
		t.Fatalf("expected serialization failure for cyclic map, got %v", err)
	}
}

func TestCanonicalize_SharedNodesAreNotCycles(t *testing.T) {
	shared := &node{Name: "s"}
	got, err := Canonicalize([]*node{shared, shared})
	if err != nil {
		t.Fatalf("shared pointer must not be treated as cycle: %v", err)
	}
	if string(got) != `[{"name":"s"},{"name":"s"}]` {
		t.Fatalf("got %s", got)
	}
}

func TestCanonicalize_UnsupportedValues(t *testing.T) {
	bad := []any{
		make(chan int),
		func() {},
		complex(1, 2),
		math.NaN(),
		math.Inf(1),
		map[float64]string{1.5: "x"},
		map[string]any{"f": func() {}},
		json.Number("12abc"),
	}
	for _, v := range bad {
		if _, err := Canonicalize(v); !errors.Is(err, ErrSerializationFailure) {
			t.Fatalf("%T: expected serialization failure, got %v", v, err)
		}
	}
}

type money struct{ cents int64 }

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(`{"currency":"BRL","value":` + decimal.New(m.cents, -2).String() + `}`), nil
}

func TestCanonicalize_ForeignMarshalerResorted(t *testing.T) {
	got, err := Canonicalize(map[string]any{"m": money{cents: 123450}})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"m":{"currency":"BRL","value":1234.5}}` {
		t.Fatalf("got %s", got)
	}
}

func TestDecodeJSON_RejectsTrailingData(t *testing.T) {
	if _, err := DecodeJSON([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
	if _, err := DecodeJSON([]byte("{\"a\":1}\n")); err != nil {
		t.Fatalf("trailing newline must be accepted: %v", err)
	}
}

type ptrMoney struct{ cents int64 }

func (m *ptrMoney) MarshalJSON() ([]byte, error) {
	return []byte(`{"value":` + decimal.New(m.cents, -2).String() + `,"currency":"BRL"}`), nil
}

type code struct{ n int }

func (c *code) MarshalText() ([]byte, error) {
	return []byte("C-" + decimal.NewFromInt(int64(c.n)).String()), nil
}

func TestCanonicalize_PointerReceiverMarshalers(t *testing.T) {
	type holder struct {
		Price ptrMoney `json:"price"`
		Code  *code    `json:"code"`
	}
	want := `{"code":"C-7","price":{"currency":"BRL","value":10.5}}`

	// a través de un puntero los campos son direccionables
	got, err := Canonicalize(&holder{Price: ptrMoney{cents: 1050}, Code: &code{n: 7}})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}

	got, err = Canonicalize(&ptrMoney{cents: 100000})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"currency":"BRL","value":1000}` {
		t.Fatalf("got %s", got)
	}

	got, err = Canonicalize([]ptrMoney{{cents: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[{"currency":"BRL","value":0.01}]` {
		t.Fatalf("got %s", got)
	}
}
