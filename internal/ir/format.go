package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatFloat renders an F64 constant in the textual grammar: NaN, Inf,
// -Inf, or a round-trippable decimal form.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// quoteString renders s as a double-quoted IL string literal, escaping
// backslash, the quote character, newline, tab, and any other
// non-printable byte as \xNN.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&sb, `\x%02X`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// Format renders an instruction in the textual IL syntax, the same form
// the printer (internal/iltext) produces, used by this package's own
// String methods and by VM tracing for IL-level trace lines.
func (in *Instr) Format() string {
	var sb strings.Builder
	if in.HasResult {
		fmt.Fprintf(&sb, "%%t%d:%s = ", in.Result, in.ResultType)
	}
	sb.WriteString(in.Op.String())
	if in.Callee != "" {
		fmt.Fprintf(&sb, " @%s", in.Callee)
	}
	for i, a := range in.Args {
		if i > 0 || in.Callee != "" {
			sb.WriteString(",")
		}
		sb.WriteString(" ")
		sb.WriteString(a.String())
	}
	for i, l := range in.Labels {
		if in.Op == OpSwitchI32 && i > 0 && i-1 < len(in.SwitchCases) {
			fmt.Fprintf(&sb, ",")
			fmt.Fprintf(&sb, " %d", in.SwitchCases[i-1])
		}
		fmt.Fprintf(&sb, " %s", l)
		if i < len(in.BrArgs) && len(in.BrArgs[i]) > 0 {
			sb.WriteString("(")
			for j, a := range in.BrArgs[i] {
				if j > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(a.String())
			}
			sb.WriteString(")")
		}
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (in *Instr) String() string { return in.Format() }

// FormatHeader renders a block's label line: "label(params):".
func (b *Block) FormatHeader() string {
	if len(b.Params) == 0 {
		return b.Label + ":"
	}
	var parts []string
	for _, p := range b.Params {
		parts = append(parts, fmt.Sprintf("%%%s:%s", p.Name, p.Type))
	}
	return fmt.Sprintf("%s(%s):", b.Label, strings.Join(parts, ", "))
}

// String implements fmt.Stringer, rendering the block and its
// instructions for debug output.
func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString(b.FormatHeader())
	sb.WriteString("\n")
	for _, in := range b.Instrs {
		sb.WriteString("  ")
		sb.WriteString(in.Format())
		sb.WriteString("\n")
	}
	return sb.String()
}

// String implements fmt.Stringer for debug dumps of a whole function.
func (f *Function) String() string {
	var sb strings.Builder
	var params []string
	for _, p := range f.Params {
		params = append(params, fmt.Sprintf("%%%s:%s", p.Name, p.Type))
	}
	fmt.Fprintf(&sb, "func @%s(%s) -> %s {\n", f.Name, strings.Join(params, ", "), f.RetType)
	for _, b := range f.Blocks {
		sb.WriteString(b.String())
	}
	sb.WriteString("}\n")
	return sb.String()
}
