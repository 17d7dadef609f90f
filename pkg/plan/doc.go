// Package plan provides the fluent facade optimization runs are built
// with. A Plan wraps the external engine's step runner and an event bus;
// steps, trackers, report tables and result stores are added through the
// facade, and plan scripts drive it through a Starlark entry point named
// run_plan.
package plan
