// Package repository turns entity metadata into statement descriptors and
// runs them through an Executor.
//
// A Repository never renders SQL. It describes SELECT, INSERT, UPDATE and
// DELETE operations as Statement values keyed by the id columns of the kind
// and hands them to the Executor port, which a storage adapter implements.
//
// Lifecycle of an instance: while any id column is unassigned (nil or -1)
// the instance is new and Save inserts it, copying generated columns back
// from the store. Afterwards Save updates it.
package repository
