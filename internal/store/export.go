package store

import (
	"encoding/json"
	"os"

	"github.com/seralt/cstrd/internal/sim"
)

type ExportData struct {
	GridStart  float64            `json:"grid_start"`
	GridEnd    float64            `json:"grid_end"`
	GridPoints int                `json:"grid_points"`
	Iterations int                `json:"iterations"`
	Times      []float64          `json:"times"`
	Ca         []float64          `json:"ca"`
	Temp       []float64          `json:"temp"`
	Controls   []float64          `json:"controls"`
	Metrics    map[string]float64 `json:"metrics"`
	Published  int                `json:"published"`
	Accepted   int                `json:"accepted"`
	Held       int                `json:"held"`
}

// ExportJSON writes the trajectory of a finished run. This is a post-run
// artifact for inspection; per-step history lives only on the bus.
func ExportJSON(path string, gridStart, gridEnd float64, gridPoints, iterations int, result *sim.Result) error {
	data := ExportData{
		GridStart:  gridStart,
		GridEnd:    gridEnd,
		GridPoints: gridPoints,
		Iterations: iterations,
		Times:      result.Times,
		Ca:         result.Ca,
		Temp:       result.Temp,
		Controls:   result.Controls,
		Metrics:    result.Metrics,
		Published:  result.Published,
		Accepted:   result.Accepted,
		Held:       result.Held,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
