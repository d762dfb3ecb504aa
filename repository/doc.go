// Package repository maps agency tables to Go values through the
// database.DataAccess port. Writes spanning several tables run in RunInTx.
package repository
