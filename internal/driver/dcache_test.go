package driver

import (
	"os"
	"testing"

	"tabi/internal/project"
)

func TestDiskCachePutGet(t *testing.T) {
	c, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	h := project.DigestOf([]byte("unit"))
	key := CacheKey(h, "i686-pc-linux-gnu")
	if key == CacheKey(h, "i386-pc-windows-msvc") {
		t.Fatalf("key must depend on the target")
	}

	in := &UnitResult{
		Name:   "core",
		Path:   "core.toml",
		Target: "i686-pc-linux-gnu",
		Hash:   h,
		Funcs:  []FuncResult{{Name: "f", Symbol: "f", Params: []ParamInfo{{Name: "x", Slot: "param"}}}},
		Vars:   []VarResult{{Name: "v", Symbol: "v"}},
	}
	if err := c.Put(key, resultToPayload(in)); err != nil {
		t.Fatalf("put: %v", err)
	}

	var out DiskPayload
	ok, err := c.Get(key, &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	if out.Name != "core" || out.UnitHash != h || len(out.Funcs) != 1 || out.Funcs[0].Params[0].Name != "x" {
		t.Fatalf("payload = %+v", out)
	}

	if err := c.DropAll(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if ok, _ := c.Get(key, &out); ok {
		t.Fatalf("entry survived DropAll")
	}
	if _, err := os.Stat(c.Dir()); err != nil {
		t.Fatalf("cache dir removed: %v", err)
	}
}
