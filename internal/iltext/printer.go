package iltext

import (
	"fmt"
	"strings"

	"github.com/splanck/viper-sub016/internal/ir"
)

// Print renders m in the textual IL format: a version header, then
// externs, globals, and functions, each in declaration order. The result
// is accepted by Parse, and verify.Module(m) == verify.Module(parsed) for
// any m that verify.Module already accepts, per the parser/printer
// round-trip property.
func Print(m *ir.Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "il %d.%d.%d\n", m.Version[0], m.Version[1], m.Version[2])

	if len(m.Externs) > 0 {
		sb.WriteString("\n")
		for _, e := range m.Externs {
			printExtern(&sb, e)
		}
	}

	if len(m.Globals) > 0 {
		sb.WriteString("\n")
		for _, g := range m.Globals {
			fmt.Fprintf(&sb, "global const str @%s = %s\n", g.Name, quoteGlobal(g.Payload))
		}
	}

	for _, fn := range m.Funcs {
		sb.WriteString("\n")
		printFunc(&sb, fn)
	}

	return sb.String()
}

func printExtern(sb *strings.Builder, e *ir.Extern) {
	parts := make([]string, len(e.Params))
	for i, t := range e.Params {
		parts[i] = t.String()
	}
	ret := ""
	if e.RetType != ir.Void {
		ret = " -> " + e.RetType.String()
	}
	fmt.Fprintf(sb, "extern @%s(%s)%s\n", e.Name, strings.Join(parts, ", "), ret)
}

func printFunc(sb *strings.Builder, fn *ir.Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%%%s:%s", paramName(fn, p), p.Type)
	}
	ret := ""
	if fn.RetType != ir.Void {
		ret = " -> " + fn.RetType.String()
	}
	fmt.Fprintf(sb, "func @%s(%s)%s {\n", fn.Name, strings.Join(params, ", "), ret)
	for _, b := range fn.Blocks {
		printBlock(sb, fn, b)
	}
	sb.WriteString("}\n")
}

func printBlock(sb *strings.Builder, fn *ir.Function, b *ir.Block) {
	if len(b.Params) == 0 {
		fmt.Fprintf(sb, "%s:\n", b.Label)
	} else {
		parts := make([]string, len(b.Params))
		for i, p := range b.Params {
			parts[i] = fmt.Sprintf("%%%s:%s", paramName(fn, p), p.Type)
		}
		fmt.Fprintf(sb, "%s(%s):\n", b.Label, strings.Join(parts, ", "))
	}
	for _, in := range b.Instrs {
		sb.WriteString("  ")
		sb.WriteString(in.Format())
		sb.WriteString("\n")
	}
}

// paramName prefers the function's recorded debug name for a parameter's
// temp id (so text round-tripped through a parsed module keeps its
// spelled names), falling back to the Param's own Name field for
// programmatically built functions that never registered one.
func paramName(fn *ir.Function, p ir.Param) string {
	if name, ok := fn.ValueNames[p.Temp]; ok && name != "" {
		return name
	}
	return p.Name
}

// quoteGlobal renders a global's string payload using the same escaping
// as operand strings.
func quoteGlobal(s string) string {
	return ir.ConstStr(s).String()
}
