// Package target turns a target triple into the immutable Config every other
// backend package is parameterised with. A Config is built once per
// compilation target and shared read-only afterwards.
package target

import (
	"fmt"
	"strings"
)

// Arch is the CPU architecture component of a triple.
type Arch uint8

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchX86_64
	ArchARM
	ArchAArch64
)

func (a Arch) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX86_64:
		return "x86_64"
	case ArchARM:
		return "arm"
	case ArchAArch64:
		return "aarch64"
	default:
		return "unknown"
	}
}

// OS is the operating system component of a triple.
type OS uint8

const (
	OSUnknown OS = iota
	OSLinux
	OSDarwin // macOS, iOS, tvOS, watchOS
	OSWindows
	OSFreeBSD
	OSNetBSD
	OSOpenBSD
	OSDragonFly
	OSSolaris
)

func (o OS) String() string {
	switch o {
	case OSLinux:
		return "linux"
	case OSDarwin:
		return "darwin"
	case OSWindows:
		return "windows"
	case OSFreeBSD:
		return "freebsd"
	case OSNetBSD:
		return "netbsd"
	case OSOpenBSD:
		return "openbsd"
	case OSDragonFly:
		return "dragonfly"
	case OSSolaris:
		return "solaris"
	default:
		return "unknown"
	}
}

// Env is the environment/ABI component of a triple.
type Env uint8

const (
	EnvUnknown Env = iota
	EnvGNU
	EnvMSVC
	EnvMusl
	EnvAndroid
	EnvEABI
)

// TLSModel selects how thread-local variables are addressed.
type TLSModel uint8

const (
	TLSGeneralDynamic TLSModel = iota
	TLSLocalDynamic
	TLSInitialExec
	TLSLocalExec
)

// ParseTLSModel accepts the usual command line spellings.
func ParseTLSModel(s string) (TLSModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "global-dynamic", "general-dynamic":
		return TLSGeneralDynamic, nil
	case "local-dynamic":
		return TLSLocalDynamic, nil
	case "initial-exec":
		return TLSInitialExec, nil
	case "local-exec":
		return TLSLocalExec, nil
	default:
		return TLSGeneralDynamic, fmt.Errorf("invalid TLS model %q (expected global-dynamic|local-dynamic|initial-exec|local-exec)", s)
	}
}

// Config is the per-target profile. It is a value type; copies are cheap and
// never mutated after Parse returns.
type Config struct {
	Triple string
	Arch   Arch
	OS     OS
	Env    Env

	PtrSize  int
	PtrAlign int

	// x87 `real`: size/alignment in memory, or RealIsDouble when the target
	// maps real onto a 64-bit double (MSVC, non-x86).
	RealSize     int
	RealAlign    int
	RealIsDouble bool

	// ReturnStructsInRegisters is false on targets whose C ABI always returns
	// aggregates through a hidden pointer.
	ReturnStructsInRegisters bool

	TLSModel TLSModel
}

func (c Config) IsDarwin() bool { return c.OS == OSDarwin }

func (c Config) IsWindows() bool { return c.OS == OSWindows }

// IsMSVC reports a Windows target using the Microsoft C++ ABI. A bare
// windows triple defaults to MSVC.
func (c Config) IsMSVC() bool {
	return c.OS == OSWindows && (c.Env == EnvMSVC || c.Env == EnvUnknown)
}

// Option adjusts a Config while it is being built.
type Option func(*Config)

// WithTLSModel overrides the default thread-local storage model.
func WithTLSModel(m TLSModel) Option {
	return func(c *Config) { c.TLSModel = m }
}

// Parse builds a Config from an LLVM-style triple such as
// "i686-pc-linux-gnu" or "i386-apple-darwin".
func Parse(triple string, opts ...Option) (Config, error) {
	triple = strings.TrimSpace(triple)
	if triple == "" {
		return Config{}, fmt.Errorf("empty target triple")
	}
	parts := strings.Split(strings.ToLower(triple), "-")
	cfg := Config{Triple: triple, Arch: parseArch(parts[0])}
	if cfg.Arch == ArchUnknown {
		return Config{}, fmt.Errorf("unsupported architecture %q in triple %q", parts[0], triple)
	}
	for _, p := range parts[1:] {
		if cfg.OS == OSUnknown {
			if os := parseOS(p); os != OSUnknown {
				cfg.OS = os
				if strings.HasPrefix(p, "mingw") || strings.HasPrefix(p, "cygwin") {
					cfg.Env = EnvGNU
				}
				continue
			}
		}
		if env := parseEnv(p); env != EnvUnknown {
			cfg.Env = env
		}
	}

	switch cfg.Arch {
	case ArchX86, ArchARM:
		cfg.PtrSize, cfg.PtrAlign = 4, 4
	default:
		cfg.PtrSize, cfg.PtrAlign = 8, 8
	}
	cfg.setReal()

	switch cfg.OS {
	case OSLinux, OSSolaris, OSNetBSD:
		cfg.ReturnStructsInRegisters = false
	default:
		cfg.ReturnStructsInRegisters = true
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg, nil
}

// MustParse is Parse for triples known to be valid (tests, defaults).
func MustParse(triple string, opts ...Option) Config {
	cfg, err := Parse(triple, opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) setReal() {
	switch {
	case c.Arch != ArchX86 && c.Arch != ArchX86_64, c.IsMSVC():
		c.RealIsDouble = true
		c.RealSize, c.RealAlign = 8, 8
		if c.Arch == ArchX86 && c.OS != OSWindows {
			c.RealAlign = 4
		}
	case c.Arch == ArchX86_64 || c.IsDarwin():
		c.RealSize, c.RealAlign = 16, 16
	default:
		c.RealSize, c.RealAlign = 12, 4
	}
}

func parseArch(s string) Arch {
	switch s {
	case "i386", "i486", "i586", "i686", "x86":
		return ArchX86
	case "x86_64", "amd64":
		return ArchX86_64
	case "aarch64", "arm64":
		return ArchAArch64
	}
	if strings.HasPrefix(s, "arm") || strings.HasPrefix(s, "thumb") {
		return ArchARM
	}
	return ArchUnknown
}

func parseOS(s string) OS {
	switch {
	case strings.HasPrefix(s, "linux"):
		return OSLinux
	case strings.HasPrefix(s, "darwin"), strings.HasPrefix(s, "macos"),
		strings.HasPrefix(s, "ios"), strings.HasPrefix(s, "tvos"), strings.HasPrefix(s, "watchos"):
		return OSDarwin
	case strings.HasPrefix(s, "windows"), strings.HasPrefix(s, "win32"),
		strings.HasPrefix(s, "mingw"), strings.HasPrefix(s, "cygwin"):
		return OSWindows
	case strings.HasPrefix(s, "freebsd"):
		return OSFreeBSD
	case strings.HasPrefix(s, "netbsd"):
		return OSNetBSD
	case strings.HasPrefix(s, "openbsd"):
		return OSOpenBSD
	case strings.HasPrefix(s, "dragonfly"):
		return OSDragonFly
	case strings.HasPrefix(s, "solaris"):
		return OSSolaris
	}
	return OSUnknown
}

func parseEnv(s string) Env {
	switch {
	case strings.HasPrefix(s, "gnu"):
		return EnvGNU
	case s == "msvc":
		return EnvMSVC
	case strings.HasPrefix(s, "musl"):
		return EnvMusl
	case strings.HasPrefix(s, "android"):
		return EnvAndroid
	case strings.HasPrefix(s, "eabi"):
		return EnvEABI
	}
	return EnvUnknown
}
