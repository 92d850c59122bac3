package expr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewritePow(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a**2", "pow(a, 2)"},
		{"a ** 2", "pow(a, 2)"},
		{"(a+b)**2", "pow((a+b), 2)"},
		{"2**3**2", "pow(2, pow(3, 2))"},
		{"x**-1", "pow(x, -1)"},
		{"sqrt(x)**2", "pow(sqrt(x), 2)"},
		{"a*b", "a*b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RewritePow(tt.in))
		})
	}
}

func TestEval(t *testing.T) {
	vars := map[string]float64{"xMgX": 0.3, "xFeX": 0.1, "mode": 0.25, "a": 2}
	tests := []struct {
		expr string
		want float64
	}{
		{"mode", 0.25},
		{"mode*100", 25},
		{"xMgX/(xFeX+xMgX)", 0.75},
		{"-a + 1", -1},
		{"a**3", 8},
		{"2**3**2", 512},
		{"abs(-a)", 2},
		{"max(xMgX, xFeX)", 0.3},
		{"min(xMgX, xFeX)", 0.1},
		{"log(1)", 0},
		{"sqrt(a*8)", 4},
		{"a-xMgX", 1.7},
		{"mode-0.1", 0.15},
		{"1-mode", 0.75},
		{"-a", -2},
		{"(a)-1", 1},
		{"a-mode**2", 1.9375},
		{"mode*1e-2", 0.0025},
		{"2.5E-1-mode", 0},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSpaceMinus(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a-b", "a - b"},
		{"mode-0.1", "mode - 0.1"},
		{"-a", "-a"},
		{"x**-1", "x**-1"},
		{"1e-5", "1e-5"},
		{"(a+b)-c", "(a+b) - c"},
		{"a - b", "a - b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SpaceMinus(tt.in))
		})
	}
}

func TestEvalNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Eval("mode*100", map[string]float64{"mode": v})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a finite number")
	}
	// unreferenced NaN values are ignored
	got, err := Eval("a+1", map[string]float64{"a": 1, "mode": math.NaN()})
	require.NoError(t, err)
	assert.InDelta(t, 2, got, 1e-12)
}

func TestVars(t *testing.T) {
	e, err := Parse("xMgX/(xFeX+xMgX) + mode**2")
	require.NoError(t, err)
	assert.Equal(t, []string{"mode", "xFeX", "xMgX"}, e.Vars())
	assert.Equal(t, "xMgX/(xFeX+xMgX) + mode**2", e.String())
}

func TestEvalErrors(t *testing.T) {
	vars := map[string]float64{"b": 1, "a": 2}

	_, err := Eval("c + a", vars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown variable "c"`)
	assert.Contains(t, err.Error(), "available: a, b")

	_, err = Eval(`"text"`, vars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not evaluate to a number")

	_, err = Eval("a > b", vars)
	require.Error(t, err)

	_, err = Eval("a +", vars)
	require.Error(t, err)

	_, err = Eval("  ", vars)
	require.Error(t, err)

	_, err = Eval("log(-a)", vars)
	require.Error(t, err)
}
