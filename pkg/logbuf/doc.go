/*
Package logbuf implements the relay's bounded log history.

Buffer is a ring of the most recent producer log entries (1000 by default).
Append never blocks and never fails: when the ring is full the oldest entry
is overwritten. Recent(n) copies out the newest n entries in insertion order,
which is what a subscriber gets during the connect handshake.

Each stored entry carries a sequence number assigned on append, so a client
that reconnects can tell whether two histories overlap. Timestamps are Unix
milliseconds, stamped on receipt when the producer omits them and clamped so
they never decrease.
*/
package logbuf
