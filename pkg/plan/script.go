package plan

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
)

// ScriptEntryPoint is the function every plan script must define. It is
// called with the plan facade as its only argument.
const ScriptEntryPoint = "run_plan"

// builtins is the predeclared environment plan scripts execute in.
func builtins() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlarkstruct.Default,
	}
}

// CheckScript executes the top level of a plan script and verifies it
// defines a callable run_plan function. No plan is run.
func CheckScript(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return engine.NewIOError(fmt.Sprintf("cannot read script %q", path), err).WithComponent("script")
	}

	thread := &starlark.Thread{Name: "check"}
	globals, err := starlark.ExecFile(thread, path, content, builtins())
	if err != nil {
		return scriptError(path, err)
	}
	return checkEntryPoint(path, globals)
}

func checkEntryPoint(name string, globals starlark.StringDict) error {
	fn, ok := globals[ScriptEntryPoint]
	if !ok {
		return engine.NewPluginError(
			fmt.Sprintf("function %q not found in script %q", ScriptEntryPoint, name))
	}
	if _, ok := fn.(starlark.Callable); !ok {
		return engine.NewPluginError(
			fmt.Sprintf("%q in script %q is not callable", ScriptEntryPoint, name))
	}
	return nil
}

// RunScript executes a plan script file against this plan.
func (p *Plan) RunScript(ctx context.Context, path string) (engine.ExitCode, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return engine.ExitUnknown, engine.NewIOError(
			fmt.Sprintf("cannot read script %q", path), err).WithComponent("script")
	}
	return p.RunScriptSource(ctx, path, content)
}

// RunScriptSource executes plan script source against this plan. The
// script's run_plan function receives the plan facade; its return value,
// when an exit code name, becomes the run's exit code.
func (p *Plan) RunScriptSource(ctx context.Context, name string, src []byte) (engine.ExitCode, error) {
	logger := p.logger.NewComponentLogger("script")
	thread := &starlark.Thread{
		Name: "ropt-everest",
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info(msg)
		},
	}
	stop := cancelOnDone(ctx, thread)
	defer stop()

	globals, err := starlark.ExecFile(thread, name, src, builtins())
	if err != nil {
		return engine.ExitUnknown, scriptError(name, err)
	}
	if err := checkEntryPoint(name, globals); err != nil {
		return engine.ExitUnknown, err
	}

	value, err := starlark.Call(thread, globals[ScriptEntryPoint],
		starlark.Tuple{newPlanValue(ctx, p)}, nil)
	if err != nil {
		return engine.ExitUnknown, scriptError(name, err)
	}
	return exitFromValue(value), nil
}

// cancelOnDone cancels the Starlark thread when the context is done, so a
// long-running script honors deadlines and aborts. The returned stop
// function releases the watcher.
func cancelOnDone(ctx context.Context, thread *starlark.Thread) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()
	return func() { close(done) }
}

// scriptError surfaces classified errors raised inside facade builtins
// unchanged; everything else becomes a plugin error with the script
// backtrace.
func scriptError(name string, err error) error {
	var classified *engine.Error
	if errors.As(err, &classified) {
		return classified
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return engine.NewPluginError(
			fmt.Sprintf("script %q failed: %s", name, evalErr.Backtrace()))
	}
	return engine.NewPluginError(fmt.Sprintf("script %q failed: %v", name, err))
}

// exitFromValue maps a script return value to an exit code. Unknown
// values count as a normal completion.
func exitFromValue(value starlark.Value) engine.ExitCode {
	switch v := value.(type) {
	case starlark.String:
		for _, code := range []engine.ExitCode{
			engine.ExitStepFinished,
			engine.ExitMaxBatchesReached,
			engine.ExitUserAbort,
		} {
			if code.String() == string(v) {
				return code
			}
		}
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return engine.ExitCode(i)
		}
	}
	return engine.ExitStepFinished
}
