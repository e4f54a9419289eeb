package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/coilblock/pkg/grid"
	"github.com/chazu/coilblock/pkg/params"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites a design script before zygomys sees it:
//
//  1. Keywords become string literals: :stub-offset -> "__kw_stub-offset".
//  2. Kebab-case identifiers become underscores: clear-bends -> clear_bends,
//     since zygomys reads a hyphen as subtraction.
//  3. Lisp ; comments become zygomys // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpPort wraps a grid coordinate returned by `port`.
type sexpPort struct {
	at grid.Coord
}

func (p *sexpPort) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(port %d %d)", p.at.Col, p.at.Row)
}
func (p *sexpPort) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if _, seen := result.kw[name]; !seen {
			result.order = append(result.order, name)
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// setter stores one keyword value into a parameter field.
type setter func(zygo.Sexp) error

func floatSetter(dst *float64) setter {
	return func(s zygo.Sexp) error {
		f, err := toFloat64(s)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func intSetter(dst *int) setter {
	return func(s zygo.Sexp) error {
		n, err := toInt(s)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func portsSetter(dst *[][]int) setter {
	return func(s zygo.Sexp) error {
		items, err := sexpListToSlice(s)
		if err != nil {
			return err
		}
		ports := make([][]int, 0, len(items))
		for i, item := range items {
			p, ok := item.(*sexpPort)
			if !ok {
				return fmt.Errorf("entry %d: expected (port col row), got %s", i, item.SexpString(nil))
			}
			ports = append(ports, []int{p.at.Col, p.at.Row})
		}
		*dst = ports
		return nil
	}
}

// applyKW runs the setter for every keyword in pa, in source order.
// Unknown keywords and positional arguments are errors.
func applyKW(fn string, pa kwArgs, fields map[string]setter) error {
	if len(pa.positional) > 0 {
		return fmt.Errorf("%s: unexpected argument %s", fn, pa.positional[0].SexpString(nil))
	}
	for _, name := range pa.order {
		set, ok := fields[name]
		if !ok {
			return fmt.Errorf("%s: unknown keyword :%s", fn, name)
		}
		if err := set(pa.kw[name]); err != nil {
			return fmt.Errorf("%s: %s: %w", fn, name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer. Floats are accepted when integral.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
		return 0, fmt.Errorf("expected integer, got %v", v.Val)
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_top) and plain strings ("top").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// table returns the bend table named by kind.
func table(b *params.Bends, kind string) (*[][]int, error) {
	switch kind {
	case "top":
		return &b.Top, nil
	case "bottom":
		return &b.Bottom, nil
	case "column":
		return &b.Column, nil
	}
	return nil, fmt.Errorf("invalid bend kind %q, expected top, bottom or column", kind)
}

// coords reads "col row col row" or "(port ..) (port ..)" into four ints.
func coords(args []zygo.Sexp) ([]int, error) {
	var out []int
	for _, a := range args {
		if p, ok := a.(*sexpPort); ok {
			out = append(out, p.at.Col, p.at.Row)
			continue
		}
		n, err := toInt(a)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("expected two tubes, got %d coordinates", len(out))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the design builtins into a zygomys environment.
// Each builtin writes into p as the script runs, so later calls win. The
// first error a builtin returns is stored in failed.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, p *params.Parameters, failed *error) {
	add := func(name string, fn func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)) {
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			out, err := fn(env, name, args)
			if err != nil && *failed == nil {
				*failed = err
			}
			return out, err
		})
	}

	// -----------------------------------------------------------------------
	// (preset :preview)
	// -----------------------------------------------------------------------
	add("preset", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("preset requires exactly 1 argument, got %d", len(args))
		}
		n, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("preset: %w", err)
		}
		base, ok := params.Presets[n]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("preset: unknown preset %q", n)
		}
		*p = base()
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (plate :width 800 :depth 600 :thickness 1.0 :stations 80)
	// -----------------------------------------------------------------------
	add("plate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return zygo.SexpNull, applyKW("plate", parseArgs(args), map[string]setter{
			"width":     floatSetter(&p.Plate.Width),
			"depth":     floatSetter(&p.Plate.Depth),
			"thickness": floatSetter(&p.Plate.Thickness),
			"stations":  intSetter(&p.Plate.Stations),
		})
	})

	// -----------------------------------------------------------------------
	// (corrugation :amplitude 0.4 :cycles 12)
	// -----------------------------------------------------------------------
	add("corrugation", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return zygo.SexpNull, applyKW("corrugation", parseArgs(args), map[string]setter{
			"amplitude": floatSetter(&p.Corrugation.Amplitude),
			"cycles":    floatSetter(&p.Corrugation.Cycles),
		})
	})

	// -----------------------------------------------------------------------
	// (grid :columns 8 :rows 5 :hole-diameter 12 :stagger 0.5)
	// -----------------------------------------------------------------------
	add("grid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return zygo.SexpNull, applyKW("grid", parseArgs(args), map[string]setter{
			"columns":       intSetter(&p.Grid.Columns),
			"rows":          intSetter(&p.Grid.Rows),
			"hole-diameter": floatSetter(&p.Grid.HoleDiameter),
			"stagger":       floatSetter(&p.Grid.StaggerRatio),
		})
	})

	// -----------------------------------------------------------------------
	// (stack :spacing 5 :target-height 1000)
	// -----------------------------------------------------------------------
	add("stack", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return zygo.SexpNull, applyKW("stack", parseArgs(args), map[string]setter{
			"spacing":       floatSetter(&p.Stack.Spacing),
			"target-height": floatSetter(&p.Stack.TargetHeight),
		})
	})

	// -----------------------------------------------------------------------
	// (tube :wall 1.0 :overhang 10)
	// -----------------------------------------------------------------------
	add("tube", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return zygo.SexpNull, applyKW("tube", parseArgs(args), map[string]setter{
			"wall":     floatSetter(&p.Tube.Wall),
			"overhang": floatSetter(&p.Tube.Overhang),
		})
	})

	// -----------------------------------------------------------------------
	// (port 1 1)
	// -----------------------------------------------------------------------
	add("port", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("port requires exactly 2 arguments, got %d", len(args))
		}
		col, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("port: col: %w", err)
		}
		row, err := toInt(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("port: row: %w", err)
		}
		return &sexpPort{at: grid.C(col, row)}, nil
	})

	// -----------------------------------------------------------------------
	// (header :radius-multiplier 8 :standoff 120 :connector-margin 1)
	// (header :side :bottom :ports (list (port 1 1) (port 8 1))
	//         :stub-offset 250 :stub-length 80)
	// -----------------------------------------------------------------------
	add("header", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		fields := map[string]setter{
			"radius-multiplier": floatSetter(&p.Header.RadiusMultiplier),
			"standoff":          floatSetter(&p.Header.Standoff),
			"connector-margin":  floatSetter(&p.Header.ConnectorMargin),
		}
		if v, ok := pa.kw["side"]; ok {
			sideName, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("header: side: %w", err)
			}
			var side *params.HeaderSide
			switch sideName {
			case "bottom":
				side = &p.Header.Bottom
			case "top":
				side = &p.Header.Top
			default:
				return zygo.SexpNull, fmt.Errorf("header: invalid side %q, expected bottom or top", sideName)
			}
			fields["side"] = func(zygo.Sexp) error { return nil }
			fields["ports"] = portsSetter(&side.Ports)
			fields["stub-offset"] = floatSetter(&side.StubOffset)
			fields["stub-length"] = floatSetter(&side.StubLength)
		}
		return zygo.SexpNull, applyKW("header", pa, fields)
	})

	// -----------------------------------------------------------------------
	// (bend :top 1 1 2 1) or (bend :column (port 4 1) (port 4 2))
	// -----------------------------------------------------------------------
	add("bend", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("bend requires a kind and two tubes")
		}
		kind, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bend: kind: %w", err)
		}
		t, err := table(&p.Bends, kind)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bend: %w", err)
		}
		entry, err := coords(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bend: %w", err)
		}
		*t = append(*t, entry)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (clear-bends) or (clear-bends :top)
	// -----------------------------------------------------------------------
	add("clear_bends", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			p.Bends = params.Bends{}
			return zygo.SexpNull, nil
		}
		for _, a := range args {
			kind, err := toKeywordString(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("clear-bends: %w", err)
			}
			t, err := table(&p.Bends, kind)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("clear-bends: %w", err)
			}
			*t = nil
		}
		return zygo.SexpNull, nil
	})
}
