// Package engine evaluates coilblock design scripts. A script is a
// zygomys Lisp program run in a sandbox; its builtins override the
// parameters and bend tables of a base configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/coilblock/pkg/params"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ScriptError collects the evaluation errors of one script file.
type ScriptError struct {
	Path   string
	Errors []EvalError
}

func (e *ScriptError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ee := range e.Errors {
		msgs[i] = ee.Error()
	}
	return fmt.Sprintf("engine: %s: %s", e.Path, strings.Join(msgs, "; "))
}

// Engine wraps the zygomys interpreter.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// errSuperseded is returned to a caller whose evaluation finished after a
// newer one had started.
var errSuperseded = errors.New("evaluation superseded by newer request")

// evalResult carries one evaluation back from its goroutine.
type evalResult struct {
	params *params.Parameters
	errors []EvalError
	err    error
}

// Evaluate runs source against a copy of base and returns the result.
// base is never modified. Evaluation stops waiting when ctx ends or after
// EvalTimeout.
//
// Return semantics:
//   - On success: returns parameters + nil errors + nil error
//   - On parse/eval failure: returns nil + eval errors + nil error
//   - On fatal failure (timeout, cancellation, panic): returns nil + nil + error
func (e *Engine) Evaluate(ctx context.Context, source string, base params.Parameters) (*params.Parameters, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, EvalTimeout)
	defer cancel()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		p, evalErrs, err := e.evaluate(source, base)
		ch <- evalResult{params: p, errors: evalErrs, err: err}
	}()

	return e.await(ctx, ch, gen)
}

// await returns the result of evaluation gen from ch. An abandoned
// evaluation keeps running; ch is buffered so its result is dropped.
func (e *Engine) await(ctx context.Context, ch <-chan evalResult, gen uint64) (*params.Parameters, []EvalError, error) {
	select {
	case res := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()
		if gen != current {
			return nil, nil, errSuperseded
		}
		return res.params, res.errors, res.err

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("evaluation timed out after %s: %w", EvalTimeout, ctx.Err())
		}
		return nil, nil, fmt.Errorf("evaluation cancelled: %w", ctx.Err())
	}
}

// EvaluateFile reads and evaluates the script at path. Evaluation errors
// are returned as a *ScriptError.
func (e *Engine) EvaluateFile(ctx context.Context, path string, base params.Parameters) (*params.Parameters, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	p, evalErrs, err := e.Evaluate(ctx, string(src), base)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		return nil, &ScriptError{Path: path, Errors: evalErrs}
	}
	return p, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, base params.Parameters) (*params.Parameters, []EvalError, error) {
	p := clone(base)

	// Empty source is a valid program that changes nothing.
	if strings.TrimSpace(source) == "" {
		return &p, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	var failed error
	registerBuiltins(env, &p, &failed)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		evalErrs := parseZygomysError(err)
		// zygomys decorates builtin errors; report ours verbatim.
		if failed != nil {
			evalErrs[0].Message = failed.Error()
		}
		return nil, evalErrs, nil
	}

	return &p, nil, nil
}

// clone deep-copies the tables of p so builtins never write through to
// the caller's slices.
func clone(p params.Parameters) params.Parameters {
	p.Header.Bottom.Ports = cloneTable(p.Header.Bottom.Ports)
	p.Header.Top.Ports = cloneTable(p.Header.Top.Ports)
	p.Bends.Top = cloneTable(p.Bends.Top)
	p.Bends.Bottom = cloneTable(p.Bends.Bottom)
	p.Bends.Column = cloneTable(p.Bends.Column)
	return p
}

func cloneTable(t [][]int) [][]int {
	if t == nil {
		return nil
	}
	out := make([][]int, len(t))
	for i, row := range t {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
