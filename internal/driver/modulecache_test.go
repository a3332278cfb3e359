package driver_test

import (
	"context"
	"testing"

	"tabi/internal/diag"
	"tabi/internal/driver"
	"tabi/internal/project"
	"tabi/internal/source"
)

func TestUnitCache_HitMiss(t *testing.T) {
	c := driver.NewUnitCache(16)
	d1 := project.DigestOf([]byte("one"))
	d2 := project.DigestOf([]byte("two"))

	u := &project.Unit{File: 3}
	u.Meta.Path = "u/x.toml"
	u.Meta.ContentHash = d1
	warn := diag.New(diag.SevWarning, diag.PrjUnknownKey, source.NoSpan, "unknown key")
	c.Put(u, []diag.Diagnostic{warn})

	if _, _, ok := c.Get("u/x.toml", 3, d2); ok {
		t.Fatal("expected miss on different content hash")
	}
	if _, _, ok := c.Get("u/x.toml", 4, d1); ok {
		t.Fatal("expected miss on different file id")
	}
	got, diags, ok := c.Get("u/x.toml", 3, d1)
	if !ok {
		t.Fatal("expected hit")
	}
	if got != u {
		t.Fatal("wrong unit returned")
	}
	if len(diags) != 1 || diags[0].Code != diag.PrjUnknownKey {
		t.Fatalf("diagnostics = %v", diags)
	}
}

func TestLowerReusesDecodedUnits(t *testing.T) {
	dir := writeUnits(t, map[string]string{"app.toml": appUnit, "core.toml": coreUnit + "\nbogus = 1\n"})
	memo := driver.NewUnitCache(4)

	first, err := driver.Lower(context.Background(), []string{dir}, driver.Options{Units: memo})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if memo.Len() != 2 {
		t.Fatalf("cached units = %d", memo.Len())
	}
	second, err := driver.Lower(context.Background(), []string{dir}, driver.Options{Units: memo})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	a, b := unitByName(t, first, "core"), unitByName(t, second, "core")
	if !hasCode(b.Bag, diag.PrjUnknownKey) {
		t.Fatalf("load warnings must be replayed: %v", b.Bag.Items())
	}
	if len(a.Funcs) != len(b.Funcs) || a.Funcs[0].Native != b.Funcs[0].Native {
		t.Fatalf("results differ: %+v vs %+v", a.Funcs, b.Funcs)
	}
}
