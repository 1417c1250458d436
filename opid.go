package lio

// OpId identifies one submitted operation: a 64-bit value combining a
// slot index into the pending-op table with a generation counter, so a
// stale OpId referring to a freed and reused slot can never be
// mistaken for the operation that allocated it. Every Submit* function
// in this package returns one; Cancel takes one back.
type OpId = uint64
