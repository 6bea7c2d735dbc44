/*
Package relay validates dashboard commands and forwards them to the producer.

The relay has no business logic. It checks that a command name is known and
that its arguments match the command's contract, then hands the command,
unchanged, to a Forwarder (the broadcast hub). Success means "forwarded":
the relay never learns whether the producer carried the command out.

# Command Contracts

	play      one or more strings, not blank when joined with spaces
	volume    exactly one integer in [0, 100]
	remove    exactly one integer >= 1 (1-based queue index)
	seek      exactly one integer >= 0 (seconds)
	skip, pause, stop, shuffle, clear, repeat
	          no arguments

Integers may arrive as JSON numbers (50, 50.0) or numeric strings ("50").
Queue bounds are not checked here; the producer owns the queue.

# Errors

Validation failures are *ValidationError (errors.Is ErrUnknownCommand for an
unrecognized name). Forwarder errors, such as the hub's
ErrProducerUnavailable, are returned unchanged. The relay never retries and
never buffers.
*/
package relay
