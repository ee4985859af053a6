package util

import "testing"

func TestMaskCPF(t *testing.T) {
	cases := map[string]string{
		"12345678901":   "*********01",
		" 98765432100 ": "*********00",
		"":              "",
		"123":           "***",
	}
	for in, want := range cases {
		if got := MaskCPF(in); got != want {
			t.Fatalf("MaskCPF(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskDSN(t *testing.T) {
	got := MaskDSN("postgres://ofb:s3cret@db:5432/ofb?sslmode=disable")
	if got != "postgres://ofb:xxxxx@db:5432/ofb?sslmode=disable" {
		t.Fatalf("got %q", got)
	}
	if got := MaskDSN("postgres://db:5432/ofb"); got != "postgres://db:5432/ofb" {
		t.Fatalf("got %q", got)
	}
	if got := MaskDSN("host=db password=x"); got != "***" {
		t.Fatalf("keyword DSN must be fully masked, got %q", got)
	}
}
