// Package command receives control inputs from the inbound channel.
//
// Receive is a two-level bounded wait:
//
//   - an outer attempt loop, default 5 attempts
//   - an inner drain of the channel, giving up after an idle timeout
//     (default 10s) with a shorter secondary poll (default 5s) before the
//     next attempt
//
// Invalid messages (empty, malformed, missing field, non-finite value) are
// logged and skipped without consuming an attempt; only a structurally valid
// finite value is accepted. Exhausting all attempts is not an error: Receive
// reports "no value" and the loop proceeds under its hold policy. The
// attempt/timeout ceiling is the only thing bounding the wait, so Receive
// never blocks indefinitely.
package command
