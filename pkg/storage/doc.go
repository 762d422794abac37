// Package storage is the root of pagedb's disk-based storage engine.
//
// Data is organised into fixed-size 4 KB pages that are read and written as
// atomic units.
//
// # Sub-packages
//
//   - [pagedb/pkg/storage/page] – Page size, page type tags, page
//     descriptors, and BaseFile, the page-granular file layer.
//   - [pagedb/pkg/storage/heap] – Heap file: page 0 holds the table
//     metadata, every later page is a slotted page of fixed-width records.
//
// # Page layout
//
// Each heap page starts with a small header (type tag, slot count, free
// space bounds) followed by a slot directory that grows from the header
// toward the end of the page. Record data is packed from the end of the page
// toward the slot directory. Every append either succeeds with a stable slot
// or reports the page full; records never move once written.
package storage
