package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/seralt/cstrd/internal/bus"
)

var (
	errEmptyPayload = errors.New("command: empty payload")
	errMissingField = errors.New("command: missing Tc field")
	errNotFinite    = errors.New("command: Tc is not finite")
	errNoCommand    = errors.New("command: no valid command this attempt")
)

// Policy bounds the Receive wait.
type Policy struct {
	Attempts    int
	IdleTimeout time.Duration
	PollTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:    5,
		IdleTimeout: 10 * time.Second,
		PollTimeout: 5 * time.Second,
	}
}

// Receiver blocks on the inbound channel for control values.
type Receiver struct {
	source bus.Source
	policy Policy
	log    zerolog.Logger
}

func NewReceiver(source bus.Source, policy Policy, log zerolog.Logger) *Receiver {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Receiver{source: source, policy: policy, log: log}
}

// Receive waits for the next valid control value. It returns (value, true)
// on acceptance, or (0, false) once all attempts are exhausted or the
// context is canceled. It never returns an error.
func (r *Receiver) Receive(ctx context.Context) (float64, bool) {
	r.log.Info().Msg("waiting for control command")

	var value float64
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(r.policy.Attempts-1), retry.NewConstant(time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if v, ok := r.drain(ctx, r.policy.IdleTimeout); ok {
			value = v
			return nil
		}
		// Secondary, shorter poll before giving the attempt up.
		if v, ok := r.drain(ctx, r.policy.PollTimeout); ok {
			value = v
			return nil
		}
		r.log.Info().Int("attempt", attempt).Int("max_attempts", r.policy.Attempts).
			Msg("no valid command received, retrying")
		return retry.RetryableError(errNoCommand)
	})
	if err != nil {
		r.log.Info().Int("attempts", attempt).Msg("giving up waiting for a command")
		return 0, false
	}
	return value, true
}

// drain consumes inbound messages until one is valid or the channel stays
// idle past the timeout. Rejected messages do not reset the attempt; they
// only keep the drain going.
func (r *Receiver) drain(ctx context.Context, idle time.Duration) (float64, bool) {
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, idle)
		payload, err := r.source.Fetch(fetchCtx)
		cancel()

		if err != nil {
			if !errors.Is(err, bus.ErrNoMessage) && !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				r.log.Warn().Err(err).Msg("fetch from inbound channel failed")
			}
			return 0, false
		}

		v, perr := Parse(payload)
		if perr != nil {
			r.log.Error().Err(perr).Bytes("payload", payload).Msg("rejected command message")
			continue
		}
		r.log.Info().Float64("tc", v).Msg("received control command")
		return v, true
	}
}

// Parse validates one inbound payload and extracts the control value.
// A payload that is a JSON string is decoded a second time, since upstream
// producers sometimes double-encode the command object.
func Parse(payload []byte) (float64, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return 0, errEmptyPayload
	}

	var wrapped string
	if err := json.Unmarshal(payload, &wrapped); err == nil {
		payload = []byte(wrapped)
	}

	var env struct {
		Tc *float64 `json:"Tc"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return 0, err
	}
	if env.Tc == nil {
		return 0, errMissingField
	}
	if math.IsNaN(*env.Tc) || math.IsInf(*env.Tc, 0) {
		return 0, errNotFinite
	}
	return *env.Tc, nil
}
