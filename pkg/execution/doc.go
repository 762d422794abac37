// Package execution is the root of pagedb's physical operators.
//
// Operators are not pipelined. Each one reads whole input tables through
// the buffer pool and appends its result to an output table, so a query is
// a sequence of runs, each materialising its output on disk.
//
// # Sub-packages
//
//   - [pagedb/pkg/execution/extsort]     – External merge sort: sorted runs
//     of a fixed number of pages, merged a bounded number at a time.
//   - [pagedb/pkg/execution/join]        – Sort-merge equi-join with
//     per-side filters and a final predicate over matching pairs.
//   - [pagedb/pkg/execution/aggregation] – Single-pass hash group-by
//     computing sum, avg and count with output records updated in place.
//   - [pagedb/pkg/execution/selection]   – Filter and projection over one
//     table.
//
// # Expressions
//
// Every operator takes its keys, predicates and projections as expression
// text, compiled by [pagedb/pkg/expr] against the schemas of its inputs
// before any page is read. A compile failure aborts the run with no output.
package execution
