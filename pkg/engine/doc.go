// Package engine defines the contracts through which the external
// optimization-plan execution engine is consumed: the step execution
// request/result types, the evaluation event model, the event handler and
// evaluator interfaces, and a synchronous event bus that delivers events to
// registered handlers strictly sequentially.
//
// The engine itself (optimizer algorithms, run-step scheduling, ensemble
// evaluation) lives outside this repository. Everything here is the
// boundary this package's builders and handlers are wired against.
package engine
