package project

import (
	"fmt"
	"strconv"
	"strings"

	"tabi/internal/types"
)

// ExprKind is the shape of a parsed type expression.
type ExprKind uint8

const (
	ExprNamed      ExprKind = iota // builtin, struct or previously declared enum/class
	ExprPointer                    // T*
	ExprArray                      // T[N]
	ExprSlice                      // T[]
	ExprVector                     // vector(T, N)
	ExprClass                      // class Name
	ExprEnum                       // enum Name : Base
	ExprDelegate                   // delegate
	ExprAssocArray                 // aa(K, V) or aa
	ExprFn                         // fn
)

// TypeExpr is the parsed form of a type written in a unit file. Resolution
// against an interner happens later, once every struct of the unit and its
// imports is known.
type TypeExpr struct {
	Kind  ExprKind
	Name  string
	Elem  *TypeExpr // pointee, element, aa value
	Key   *TypeExpr // aa key, enum base
	Count uint32
}

func (e *TypeExpr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprPointer:
		return e.Elem.String() + "*"
	case ExprArray:
		return fmt.Sprintf("%s[%d]", e.Elem, e.Count)
	case ExprSlice:
		return e.Elem.String() + "[]"
	case ExprVector:
		return fmt.Sprintf("vector(%s,%d)", e.Elem, e.Count)
	case ExprClass:
		return "class " + e.Name
	case ExprEnum:
		if e.Key == nil {
			return "enum " + e.Name
		}
		return fmt.Sprintf("enum %s : %s", e.Name, e.Key)
	case ExprDelegate:
		return "delegate"
	case ExprAssocArray:
		if e.Key == nil {
			return "aa"
		}
		return fmt.Sprintf("aa(%s,%s)", e.Key, e.Elem)
	case ExprFn:
		return "fn"
	default:
		return e.Name
	}
}

// ParamExpr is one parameter or field: "[name:] [ref|out|in] type".
type ParamExpr struct {
	Name    string
	Storage types.Storage
	Type    *TypeExpr
}

// ExprError describes a malformed type expression.
type ExprError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("bad type %q at %d: %s", e.Expr, e.Pos, e.Msg)
}

// ParseTypeExpr parses a bare type expression.
func ParseTypeExpr(s string) (*TypeExpr, error) {
	p, err := newExprParser(s)
	if err != nil {
		return nil, err
	}
	t, err := p.typ()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseParam parses a parameter entry. Storage classes are accepted only
// when allowStorage is set (struct fields have none).
func ParseParam(s string, allowStorage bool) (ParamExpr, error) {
	p, err := newExprParser(s)
	if err != nil {
		return ParamExpr{}, err
	}
	var out ParamExpr
	if p.peek().kind == tokIdent && p.peekAt(1).kind == tokColon {
		out.Name = p.next().text
		p.next()
	}
	if tk := p.peek(); tk.kind == tokIdent && allowStorage {
		switch tk.text {
		case "ref", "out":
			out.Storage = types.StorageRef
			p.next()
		case "in":
			out.Storage = types.StorageIn
			p.next()
		}
	}
	if out.Type, err = p.typ(); err != nil {
		return ParamExpr{}, err
	}
	if err := p.end(); err != nil {
		return ParamExpr{}, err
	}
	return out, nil
}

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokStar
	tokLBrack
	tokRBrack
	tokLParen
	tokRParen
	tokComma
	tokColon
)

type exprToken struct {
	kind tokKind
	text string
	pos  int
}

type exprParser struct {
	src  string
	toks []exprToken
	i    int
}

func newExprParser(s string) (*exprParser, error) {
	p := &exprParser{src: s}
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && (isIdentStart(s[j]) || isDigit(s[j]) || s[j] == '.') {
				j++
			}
			p.toks = append(p.toks, exprToken{kind: tokIdent, text: s[i:j], pos: i})
			i = j
		case isDigit(c):
			j := i + 1
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			p.toks = append(p.toks, exprToken{kind: tokNumber, text: s[i:j], pos: i})
			i = j
		default:
			k, ok := punct[c]
			if !ok {
				return nil, &ExprError{Expr: s, Pos: i, Msg: fmt.Sprintf("unexpected %q", c)}
			}
			p.toks = append(p.toks, exprToken{kind: k, text: s[i : i+1], pos: i})
			i++
		}
	}
	p.toks = append(p.toks, exprToken{kind: tokEOF, pos: len(s)})
	if len(p.toks) == 1 {
		return nil, &ExprError{Expr: s, Msg: "empty type"}
	}
	return p, nil
}

var punct = map[byte]tokKind{
	'*': tokStar,
	'[': tokLBrack,
	']': tokRBrack,
	'(': tokLParen,
	')': tokRParen,
	',': tokComma,
	':': tokColon,
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *exprParser) peek() exprToken { return p.peekAt(0) }

func (p *exprParser) peekAt(n int) exprToken {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *exprParser) next() exprToken {
	tk := p.peek()
	if tk.kind != tokEOF {
		p.i++
	}
	return tk
}

func (p *exprParser) errorf(tk exprToken, format string, args ...any) error {
	return &ExprError{Expr: p.src, Pos: tk.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) expect(k tokKind, what string) (exprToken, error) {
	tk := p.next()
	if tk.kind != k {
		return tk, p.errorf(tk, "expected %s", what)
	}
	return tk, nil
}

func (p *exprParser) end() error {
	if tk := p.peek(); tk.kind != tokEOF {
		return p.errorf(tk, "unexpected %q", tk.text)
	}
	return nil
}

func (p *exprParser) count() (uint32, error) {
	tk, err := p.expect(tokNumber, "length")
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(tk.text, 10, 32)
	if err != nil {
		return 0, p.errorf(tk, "length %s out of range", tk.text)
	}
	return uint32(n), nil
}

// typ := primary { '*' | '[' [N] ']' }
func (p *exprParser) typ() (*TypeExpr, error) {
	t, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokStar:
			p.next()
			t = &TypeExpr{Kind: ExprPointer, Elem: t}
		case tokLBrack:
			p.next()
			if p.peek().kind == tokRBrack {
				p.next()
				t = &TypeExpr{Kind: ExprSlice, Elem: t}
				continue
			}
			n, err := p.count()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBrack, "']'"); err != nil {
				return nil, err
			}
			t = &TypeExpr{Kind: ExprArray, Elem: t, Count: n}
		default:
			return t, nil
		}
	}
}

func (p *exprParser) primary() (*TypeExpr, error) {
	tk, err := p.expect(tokIdent, "type name")
	if err != nil {
		return nil, err
	}
	switch tk.text {
	case "class":
		name, err := p.expect(tokIdent, "class name")
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: ExprClass, Name: name.text}, nil
	case "enum":
		name, err := p.expect(tokIdent, "enum name")
		if err != nil {
			return nil, err
		}
		e := &TypeExpr{Kind: ExprEnum, Name: name.text}
		if p.peek().kind == tokColon {
			p.next()
			if e.Key, err = p.typ(); err != nil {
				return nil, err
			}
		}
		return e, nil
	case "vector":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		elem, err := p.typ()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, "','"); err != nil {
			return nil, err
		}
		n, err := p.count()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: ExprVector, Elem: elem, Count: n}, nil
	case "aa":
		if p.peek().kind != tokLParen {
			return &TypeExpr{Kind: ExprAssocArray}, nil
		}
		p.next()
		key, err := p.typ()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, "','"); err != nil {
			return nil, err
		}
		val, err := p.typ()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: ExprAssocArray, Key: key, Elem: val}, nil
	case "delegate":
		return &TypeExpr{Kind: ExprDelegate}, nil
	case "fn":
		return &TypeExpr{Kind: ExprFn}, nil
	case "ref", "out", "in":
		return nil, p.errorf(tk, "storage class %q is not allowed here", tk.text)
	}
	return &TypeExpr{Kind: ExprNamed, Name: tk.text}, nil
}

// builtinNames maps source spellings onto the builtin table.
var builtinNames = map[string]func(types.Builtins) types.TypeID{
	"void":     func(b types.Builtins) types.TypeID { return b.Void },
	"noreturn": func(b types.Builtins) types.TypeID { return b.Noreturn },
	"null":     func(b types.Builtins) types.TypeID { return b.Null },
	"bool":     func(b types.Builtins) types.TypeID { return b.Bool },
	"byte":     func(b types.Builtins) types.TypeID { return b.Int8 },
	"int8":     func(b types.Builtins) types.TypeID { return b.Int8 },
	"ubyte":    func(b types.Builtins) types.TypeID { return b.Uint8 },
	"uint8":    func(b types.Builtins) types.TypeID { return b.Uint8 },
	"char":     func(b types.Builtins) types.TypeID { return b.Uint8 },
	"short":    func(b types.Builtins) types.TypeID { return b.Int16 },
	"int16":    func(b types.Builtins) types.TypeID { return b.Int16 },
	"ushort":   func(b types.Builtins) types.TypeID { return b.Uint16 },
	"uint16":   func(b types.Builtins) types.TypeID { return b.Uint16 },
	"int":      func(b types.Builtins) types.TypeID { return b.Int32 },
	"int32":    func(b types.Builtins) types.TypeID { return b.Int32 },
	"uint":     func(b types.Builtins) types.TypeID { return b.Uint32 },
	"uint32":   func(b types.Builtins) types.TypeID { return b.Uint32 },
	"long":     func(b types.Builtins) types.TypeID { return b.Int64 },
	"int64":    func(b types.Builtins) types.TypeID { return b.Int64 },
	"ulong":    func(b types.Builtins) types.TypeID { return b.Uint64 },
	"uint64":   func(b types.Builtins) types.TypeID { return b.Uint64 },
	"float":    func(b types.Builtins) types.TypeID { return b.Float32 },
	"float32":  func(b types.Builtins) types.TypeID { return b.Float32 },
	"double":   func(b types.Builtins) types.TypeID { return b.Float64 },
	"float64":  func(b types.Builtins) types.TypeID { return b.Float64 },
	"real":     func(b types.Builtins) types.TypeID { return b.Float80 },
	"cfloat":   func(b types.Builtins) types.TypeID { return b.Complex32 },
	"cdouble":  func(b types.Builtins) types.TypeID { return b.Complex64 },
	"creal":    func(b types.Builtins) types.TypeID { return b.Complex80 },
}

// IsBuiltinName reports names that cannot be used for user types.
func IsBuiltinName(name string) bool {
	if _, ok := builtinNames[name]; ok {
		return true
	}
	switch strings.ToLower(name) {
	case "class", "enum", "vector", "aa", "delegate", "fn", "ref", "out", "in":
		return true
	}
	return false
}
