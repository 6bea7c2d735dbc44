// Package state holds the relay's single authoritative BotState.
//
// Store is a dumb merge target: Apply folds a partial update into the
// current state field by field (last write wins) and Snapshot returns a deep
// copy for new subscribers. Values are coerced to the field type (numeric
// strings become numbers, floats are rounded for integer fields) but never
// checked for meaning; that is the producer's job.
//
// Store does no locking. The broadcast hub in pkg/events owns the only
// instance and calls it from its processing loop.
package state
