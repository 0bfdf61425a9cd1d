// Package snowflake generates unique, roughly time ordered 64-bit identifiers.
//
// An id packs milliseconds since a configurable epoch, a worker id, a process
// id and a per millisecond sequence:
//
//	| 41 bits timestamp | 5 bits worker | 5 bits process | 12 bits sequence |
//
// A Generator serializes NextID behind a mutex. Ids from one generator are
// unique and non-decreasing. Ids from several generators are unique only when
// every generator runs with a distinct (worker, process) pair; assigning those
// pairs is a deployment concern.
//
// NextID refuses to run when the wall clock moves backwards and returns an
// error with text code CLOCK_MOVED_BACKWARDS. Callers should surface it
// rather than retry.
package snowflake
