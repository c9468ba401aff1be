package model

// ID is a single unsigned id column, e.g. `SELECT id FROM ...`.
type ID uint64

// Count is a single COUNT(*) column.
type Count int64
