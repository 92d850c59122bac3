// Package expr evaluates arithmetic expressions over THERMOCALC variables
// of one phase, e.g. "xMgX/(xFeX+xMgX)" or "mode*100".
//
// Expressions use HCL arithmetic syntax. The power operator "**" is
// accepted and rewritten to pow(a, b). HCL identifiers may contain '-',
// so a minus directly after a name or number is spaced out first and
// "a-b" stays a subtraction.
package expr

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Expr is a parsed expression.
type Expr struct {
	src  string
	expr hcl.Expression
	vars []string
}

var functions = map[string]function.Function{
	"pow":   stdlib.PowFunc,
	"abs":   stdlib.AbsoluteFunc,
	"min":   stdlib.MinFunc,
	"max":   stdlib.MaxFunc,
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"exp":   unary(math.Exp),
	"sqrt":  unary(math.Sqrt),
}

func unary(fn func(float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.Number}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v, _ := args[0].AsBigFloat().Float64()
			r := fn(v)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return cty.NilVal, fmt.Errorf("result of %v is not a finite number", v)
			}
			return cty.NumberFloatVal(r), nil
		},
	})
}

// Parse parses src.
func Parse(src string) (*Expr, error) {
	text := RewritePow(SpaceMinus(strings.TrimSpace(src)))
	if text == "" {
		return nil, fmt.Errorf("empty expression")
	}
	e, diags := hclsyntax.ParseExpression([]byte(text), "expr", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %q: %s", src, diags.Error())
	}
	seen := make(map[string]bool)
	var vars []string
	for _, t := range e.Variables() {
		name := t.RootName()
		if !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
	}
	sort.Strings(vars)
	return &Expr{src: src, expr: e, vars: vars}, nil
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// Vars returns the referenced variable names.
func (e *Expr) Vars() []string { return e.vars }

// Eval evaluates the expression with the given variables.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	values := make(map[string]cty.Value, len(e.vars))
	for _, name := range e.vars {
		v, ok := vars[name]
		if !ok {
			return 0, fmt.Errorf("unknown variable %q in %q (available: %s)", name, e.src, available(vars))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("variable %q in %q is not a finite number (%v)", name, e.src, v)
		}
		values[name] = cty.NumberFloatVal(v)
	}
	ctx := &hcl.EvalContext{Variables: values, Functions: functions}
	val, diags := e.expr.Value(ctx)
	if diags.HasErrors() {
		return 0, fmt.Errorf("evaluating %q: %s", e.src, diags.Error())
	}
	if val.IsNull() || !val.IsKnown() || val.Type() != cty.Number {
		return 0, fmt.Errorf("expression %q does not evaluate to a number", e.src)
	}
	f, _ := val.AsBigFloat().Float64()
	return f, nil
}

// Eval parses and evaluates src.
func Eval(src string, vars map[string]float64) (float64, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(vars)
}

func available(vars map[string]float64) string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// SpaceMinus puts spaces around every '-' that directly follows an
// identifier, a number or a closing parenthesis. Exponents such as 1e-5
// are left alone.
func SpaceMinus(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' && i > 0 && (isIdent(s[i-1]) || s[i-1] == ')') && !isExponent(s, i) {
			b.WriteString(" - ")
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// isExponent reports whether the '-' at i is the sign of a number
// exponent, as in 2.5e-3.
func isExponent(s string, i int) bool {
	if s[i-1] != 'e' && s[i-1] != 'E' {
		return false
	}
	j := i - 1
	for j > 0 && isIdent(s[j-1]) {
		j--
	}
	return s[j] >= '0' && s[j] <= '9'
}

// RewritePow rewrites a ** b into pow(a, b). The operator is right
// associative, so the rightmost occurrence is rewritten first.
func RewritePow(s string) string {
	for {
		i := strings.LastIndex(s, "**")
		if i < 0 {
			return s
		}
		ls := operandStart(s, i)
		re := operandEnd(s, i+2)
		if ls < 0 || re < 0 {
			return s
		}
		left := strings.TrimSpace(s[ls:i])
		right := strings.TrimSpace(s[i+2 : re])
		s = s[:ls] + "pow(" + left + ", " + right + ")" + s[re:]
	}
}

func isIdent(c byte) bool {
	return c == '_' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// operandStart returns where the operand ending before index end begins.
func operandStart(s string, end int) int {
	j := end - 1
	for j >= 0 && s[j] == ' ' {
		j--
	}
	if j < 0 {
		return -1
	}
	if s[j] == ')' {
		depth := 0
		for ; j >= 0; j-- {
			switch s[j] {
			case ')':
				depth++
			case '(':
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if j < 0 {
			return -1
		}
	}
	// identifier or number, or the name of a called function
	for j > 0 && isIdent(s[j-1]) {
		j--
	}
	if !isIdent(s[j]) && s[j] != '(' {
		return -1
	}
	return j
}

// operandEnd returns the index after the operand starting at start.
func operandEnd(s string, start int) int {
	j := start
	for j < len(s) && s[j] == ' ' {
		j++
	}
	if j < len(s) && (s[j] == '-' || s[j] == '+') {
		j++
	}
	begin := j
	for j < len(s) && isIdent(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '(' {
		depth := 0
		for ; j < len(s); j++ {
			switch s[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				return j + 1
			}
		}
		return -1
	}
	if j == begin {
		return -1
	}
	return j
}
