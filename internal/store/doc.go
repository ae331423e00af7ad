// Package store provides the persistence layer: a PostgreSQL tick
// archive (idempotent on the (instrument_id, ts) key) and a Redis hot
// cache holding the latest tick per instrument. Both are optional; a
// quotefeed instance runs fine with neither configured.
package store
