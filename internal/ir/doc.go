// Package ir provides the data model of the tensor IR: affine expressions,
// indexes, refinements, statements, blocks and programs.
//
// This package contains type definitions, the wire codec and content
// addressing only. All other internal packages import ir; ir imports nothing
// internal. This ensures IR remains the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - The IR is a single rooted tree. Nested blocks are owned sub-trees and
//     a Refinement's From is a name lookup in the parent scope, never a pointer.
//   - Statement, Attribute and ConstValue are sealed interfaces; consumers
//     switch exhaustively over their variants.
//   - Affine terms are sparse: zero coefficients are never stored.
//   - All JSON tags use snake_case.
//   - Placement metadata (Refinement.Offset, Refinement.BankDim, Location)
//     never changes validation or execution.
package ir
