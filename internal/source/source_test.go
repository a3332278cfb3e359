package source

import "testing"

func TestInternerRoundTrip(t *testing.T) {
	in := NewInterner()
	a := in.Intern("Pair")
	b := in.Intern("Pair")
	if a != b {
		t.Fatalf("expected same ID, got %d and %d", a, b)
	}
	if s := in.MustLookup(a); s != "Pair" {
		t.Fatalf("lookup: got %q", s)
	}
	if _, ok := in.Lookup(StringID(99)); ok {
		t.Fatalf("expected unknown id to fail")
	}
}

func TestFileSetResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("unit.toml", []byte("[target]\r\ntriple = \"i686\"\nname = \"f\"\n"))
	f := fs.Get(id)
	sp, ok := f.Find(`name = "f"`)
	if !ok {
		t.Fatalf("expected to find declaration")
	}
	start, _ := fs.Resolve(sp)
	if start.Line != 3 || start.Col != 1 {
		t.Fatalf("expected 3:1, got %d:%d", start.Line, start.Col)
	}
	if got, ok := fs.Lookup("./unit.toml"); !ok || got != id {
		t.Fatalf("lookup by path failed: %v %v", got, ok)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	if c := a.Cover(b); c.Start != 2 || c.End != 8 {
		t.Fatalf("unexpected cover %v", c)
	}
	other := Span{File: 2, Start: 0, End: 100}
	if c := a.Cover(other); c != a {
		t.Fatalf("cross-file cover must not merge, got %v", c)
	}
}
