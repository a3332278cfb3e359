package driver_test

import (
	"testing"

	"tabi/internal/diag"
	"tabi/internal/driver"
	"tabi/internal/target"
)

func scratch(t *testing.T) *driver.Unit {
	t.Helper()
	return driver.NewUnit(nil, target.MustParse("i686-pc-linux-gnu"), nil, 16)
}

func TestEvalCast(t *testing.T) {
	u := scratch(t)
	cases := []struct {
		from, to, lit string
		want          string
	}{
		{"int", "long", "-5", "-5"},
		{"int", "ubyte", "300", "44"},
		{"double", "int", "-7.9", "-7"},
		{"uint", "void*", "0x1000", "0x1000"},
		{"int", "bool", "9", "1"},
		{"float", "real", "0.5", "0.5"},
	}
	for _, tc := range cases {
		res, err := u.EvalCast(tc.from, tc.to, tc.lit)
		if err != nil {
			t.Fatalf("%s(%s) -> %s: %v", tc.from, tc.lit, tc.to, err)
		}
		if res.Text != tc.want {
			t.Fatalf("%s(%s) -> %s = %s, want %s", tc.from, tc.lit, tc.to, res.Text, tc.want)
		}
	}
}

func TestEvalCastRejectsBadInput(t *testing.T) {
	u := scratch(t)
	if _, err := u.EvalCast("int", "long", "abc"); err == nil {
		t.Fatalf("bad literal must fail")
	}
	if _, err := u.EvalCast("Nope", "int", "1"); err == nil {
		t.Fatalf("unknown type must fail")
	}
	if _, err := u.EvalCast("int[]", "float", "null"); err == nil {
		t.Fatalf("slice to float must fail")
	}
}

func TestEvalNull(t *testing.T) {
	u := scratch(t)
	for _, ty := range []string{"int*", "int[]", "cfloat", "class Object", "aa"} {
		res, err := u.EvalNull(ty)
		if err != nil {
			t.Fatalf("null %s: %v", ty, err)
		}
		for _, b := range res.Bytes {
			if b != 0 {
				t.Fatalf("null %s = % x", ty, res.Bytes)
			}
		}
	}
	if _, err := u.EvalNull("void"); err == nil {
		t.Fatalf("void has no null")
	}
}

func TestUnitDropsRepeatedDiagnostics(t *testing.T) {
	u := scratch(t)
	for range 3 {
		if _, err := u.EvalCast("int[]", "float", "null"); err == nil {
			t.Fatalf("slice to float must fail")
		}
	}
	n := 0
	for _, d := range u.Bag.Items() {
		if d.Code == diag.AbiInvalidCast {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("invalid cast reported %d times: %v", n, u.Bag.Items())
	}
}
