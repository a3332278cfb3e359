package target

import "testing"

func TestParseTriples(t *testing.T) {
	cases := []struct {
		triple      string
		arch        Arch
		os          OS
		msvc        bool
		darwin      bool
		structsRegs bool
		ptr         int
	}{
		{"i686-pc-linux-gnu", ArchX86, OSLinux, false, false, false, 4},
		{"i386-apple-darwin", ArchX86, OSDarwin, false, true, true, 4},
		{"i686-pc-windows-msvc", ArchX86, OSWindows, true, false, true, 4},
		{"i686-w64-mingw32", ArchX86, OSWindows, false, false, true, 4},
		{"i686-unknown-freebsd", ArchX86, OSFreeBSD, false, false, true, 4},
		{"i686-unknown-netbsd", ArchX86, OSNetBSD, false, false, false, 4},
		{"i386-pc-solaris2.11", ArchX86, OSSolaris, false, false, false, 4},
		{"x86_64-unknown-linux-gnu", ArchX86_64, OSLinux, false, false, false, 8},
	}
	for _, tc := range cases {
		cfg, err := Parse(tc.triple)
		if err != nil {
			t.Fatalf("%s: %v", tc.triple, err)
		}
		if cfg.Arch != tc.arch || cfg.OS != tc.os {
			t.Fatalf("%s: got arch=%v os=%v", tc.triple, cfg.Arch, cfg.OS)
		}
		if cfg.IsMSVC() != tc.msvc || cfg.IsDarwin() != tc.darwin {
			t.Fatalf("%s: msvc=%v darwin=%v", tc.triple, cfg.IsMSVC(), cfg.IsDarwin())
		}
		if cfg.ReturnStructsInRegisters != tc.structsRegs {
			t.Fatalf("%s: ReturnStructsInRegisters=%v", tc.triple, cfg.ReturnStructsInRegisters)
		}
		if cfg.PtrSize != tc.ptr {
			t.Fatalf("%s: ptr size %d", tc.triple, cfg.PtrSize)
		}
	}
}

func TestParseRejectsUnknownArch(t *testing.T) {
	if _, err := Parse("mips-unknown-linux-gnu"); err == nil {
		t.Fatalf("expected error for mips")
	}
	if _, err := Parse("  "); err == nil {
		t.Fatalf("expected error for empty triple")
	}
}

func TestRealLayout(t *testing.T) {
	linux := MustParse("i686-pc-linux-gnu")
	if linux.RealIsDouble || linux.RealSize != 12 || linux.RealAlign != 4 {
		t.Fatalf("linux real: %+v", linux)
	}
	msvc := MustParse("i686-pc-windows-msvc")
	if !msvc.RealIsDouble || msvc.RealSize != 8 {
		t.Fatalf("msvc real: %+v", msvc)
	}
	darwin := MustParse("i386-apple-darwin")
	if darwin.RealSize != 16 {
		t.Fatalf("darwin real size: %d", darwin.RealSize)
	}
}

func TestTLSModelOption(t *testing.T) {
	m, err := ParseTLSModel("initial-exec")
	if err != nil {
		t.Fatal(err)
	}
	cfg := MustParse("i686-pc-linux-gnu", WithTLSModel(m))
	if cfg.TLSModel != TLSInitialExec {
		t.Fatalf("tls model not applied: %v", cfg.TLSModel)
	}
	if _, err := ParseTLSModel("bogus"); err == nil {
		t.Fatalf("expected error")
	}
}
