// Package engine is the reference executor for Stripe programs.
//
// The executor walks the block tree. For every block activation it
// enumerates the block's index space (Tuples), resolves refinement views
// against the enclosing views, and runs the block's statements once per
// admitted tuple with a fresh scalar frame.
//
// EXECUTION MODEL:
//
// Sequential (default):
// Tuples run in enumeration order (first index slowest) and statements in
// declaration order. This is the reference semantics every other schedule
// must agree with for commutative aggregations.
//
// Parallel (WithParallelism):
// Tuples of one activation run as independent units on an errgroup.
// Stores combine under the storage lock, so "add" and friends are exact;
// the identity aggregation keeps whichever writer lands last.
//
// Reordered (WithScheduler):
// Statements of a tuple run in any topological order of the block's
// dependency graph (compiler.BuildDependencyGraph).
//
// Validation (compiler.Check) runs before the first statement; an invalid
// program never executes.
package engine
