// Package results defines the evaluation result records consumed from the
// optimization engine: function results and gradient results, their
// axis-tagged multi-dimensional fields, and uniform dotted-path field
// resolution. The records are read-only from the point of view of this
// repository; they are created and owned by the engine.
package results
