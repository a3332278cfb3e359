package types

import (
	"fmt"
	"strings"
)

// TypeString renders a type in source syntax for diagnostics.
func (in *Interner) TypeString(id TypeID) string {
	var b strings.Builder
	in.writeType(&b, id, 0)
	return b.String()
}

func (in *Interner) writeType(b *strings.Builder, id TypeID, depth int) {
	if depth > 32 {
		b.WriteString("...")
		return
	}
	tt, ok := in.Lookup(id)
	if !ok {
		b.WriteString("<invalid>")
		return
	}
	switch tt.Kind {
	case KindVoid:
		b.WriteString("void")
	case KindNoreturn:
		b.WriteString("noreturn")
	case KindNull:
		b.WriteString("typeof(null)")
	case KindBool:
		b.WriteString("bool")
	case KindInt, KindUint:
		b.WriteString(intName(tt.Kind == KindUint, tt.Width))
	case KindFloat:
		switch tt.Width {
		case Width32:
			b.WriteString("float")
		case Width64:
			b.WriteString("double")
		default:
			b.WriteString("real")
		}
	case KindComplex:
		switch tt.Width {
		case Width32:
			b.WriteString("cfloat")
		case Width64:
			b.WriteString("cdouble")
		default:
			b.WriteString("creal")
		}
	case KindPointer:
		in.writeType(b, tt.Elem, depth+1)
		b.WriteByte('*')
	case KindFunction:
		b.WriteString("function")
	case KindArray:
		in.writeType(b, tt.Elem, depth+1)
		fmt.Fprintf(b, "[%d]", tt.Count)
	case KindSlice:
		in.writeType(b, tt.Elem, depth+1)
		b.WriteString("[]")
	case KindVector:
		b.WriteString("__vector(")
		in.writeType(b, tt.Elem, depth+1)
		fmt.Fprintf(b, "[%d])", tt.Count)
	case KindDelegate:
		b.WriteString("delegate")
	case KindAssocArray:
		in.writeType(b, tt.Elem, depth+1)
		b.WriteByte('[')
		in.writeType(b, TypeID(tt.Count), depth+1)
		b.WriteByte(']')
	case KindStruct, KindClass, KindEnum:
		if name := in.Name(id); name != "" {
			b.WriteString(name)
		} else {
			fmt.Fprintf(b, "%s#%d", tt.Kind, id)
		}
	default:
		fmt.Fprintf(b, "%s#%d", tt.Kind, id)
	}
}

func intName(unsigned bool, w Width) string {
	var s string
	switch w {
	case Width8:
		s = "byte"
	case Width16:
		s = "short"
	case Width32:
		s = "int"
	default:
		s = "long"
	}
	if unsigned {
		return "u" + s
	}
	return s
}
