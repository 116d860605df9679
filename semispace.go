// ABOUTME: Main semispace package providing version information and package documentation
// ABOUTME: This is the root package for the semi-space GC heap library

// Package semispace provides an incremental copying semi-space garbage
// collector for a small managed-object runtime. It includes the two-space
// heap with bump allocation, stepwise Cheney-style collection interleaved
// with allocation, root tracking across object relocation, and read/write
// barriers that keep an in-progress collection correct.
package semispace

// Version is the semantic version of the semispace library
const Version = "0.1.0-dev"
