package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/seralt/cstrd/internal/bus"
)

// ErrNotFinite indicates a measurement with NaN or Inf components. Nothing
// is emitted in that case; the step itself is not aborted.
var ErrNotFinite = errors.New("telemetry: measurement not finite")

// Measurement is the wire format of one published step.
type Measurement struct {
	Ca                 float64 `json:"Ca"`
	ReactorTemperature float64 `json:"Reactor_Temperature"`
}

// Publisher emits step measurements on the outbound channel and creates the
// readiness marker on the first successful emission of the process lifetime.
type Publisher struct {
	sink       bus.Sink
	markerPath string
	markerOnce sync.Once
	log        zerolog.Logger
}

func NewPublisher(sink bus.Sink, markerPath string, log zerolog.Logger) *Publisher {
	return &Publisher{
		sink:       sink,
		markerPath: markerPath,
		log:        log,
	}
}

// Publish validates and emits one measurement. The send is synchronous: it
// returns only once the channel has acknowledged delivery.
func (p *Publisher) Publish(ctx context.Context, ca, temp float64) error {
	if !finite(ca) || !finite(temp) {
		p.log.Error().Float64("ca", ca).Float64("reactor_temperature", temp).
			Msg("refusing to publish non-finite measurement")
		return ErrNotFinite
	}

	payload, err := json.Marshal(Measurement{Ca: ca, ReactorTemperature: temp})
	if err != nil {
		return err
	}
	if err := p.sink.Publish(ctx, payload); err != nil {
		return err
	}
	p.log.Info().Float64("ca", ca).Float64("reactor_temperature", temp).
		Msg("published measurement")

	p.markerOnce.Do(p.createMarker)
	return nil
}

// createMarker writes the readiness file once per process. Creation is
// skipped if the marker already exists.
func (p *Publisher) createMarker() {
	if p.markerPath == "" {
		return
	}
	if _, err := os.Stat(p.markerPath); err == nil {
		return
	}
	if err := os.WriteFile(p.markerPath, []byte("healthcheck"), 0o644); err != nil {
		p.log.Warn().Err(err).Str("path", p.markerPath).Msg("could not create readiness marker")
		return
	}
	p.log.Info().Str("path", p.markerPath).Msg("readiness marker created")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
