package reactor

import (
	"math"

	"github.com/seralt/cstrd/internal/plant"
)

// Physical and engineering constants for the reactor. Fixed for all runs.
const (
	flowRate       = 100.0  // q, volumetric flow rate
	volume         = 100.0  // V, reactor volume
	density        = 1000.0 // rho
	heatCapacity   = 0.239  // Cp
	heatOfReaction = 5e4    // -dH
	activationTemp = 8750.0 // E/R
	rateConstant   = 7.2e10 // k0, pre-exponential factor
	heatTransfer   = 5e4    // U*A
)

// Steady-state operating point the simulator seeds from.
const (
	CaSeed        = 0.87725294608097
	TempSeed      = 324.475443431599
	TcSteadyState = 300.0
)

// Feed holds the inflow conditions, fixed for one run.
type Feed struct {
	Temp float64 // Tf
	Conc float64 // Caf
}

func DefaultFeed() Feed {
	return Feed{Temp: 350.0, Conc: 1.0}
}

// CSTR models a continuously stirred tank reactor with a single irreversible
// first-order reaction A -> B. The control input u is the cooling medium
// temperature Tc. The model is undefined for T <= 0 (Arrhenius term).
type CSTR struct {
	Feed Feed
}

func New(feed Feed) *CSTR {
	return &CSTR{Feed: feed}
}

func (c *CSTR) Dim() int { return 2 }

func (c *CSTR) Derive(x plant.State, u float64, t float64) plant.State {
	ca := x[0]
	temp := x[1]

	rate := rateConstant * math.Exp(-activationTemp/temp) * ca

	dCa := flowRate/volume*(c.Feed.Conc-ca) - rate
	dTemp := flowRate/volume*(c.Feed.Temp-temp) +
		heatOfReaction/(density*heatCapacity)*rate +
		heatTransfer/volume/density/heatCapacity*(u-temp)

	return plant.State{dCa, dTemp}
}

func (c *CSTR) InDomain(x plant.State) bool {
	return x[1] > 0
}

// SeedState returns the steady-state initial condition [Ca, T].
func SeedState() plant.State {
	return plant.State{CaSeed, TempSeed}
}
