// Package progress turns a raw 0..100 server percentage into a fixed
// sequence of named stages.
package progress

import (
	"fmt"
	"math"
)

// Stage is one named slice [Min, Max) of the overall percentage.
type Stage struct {
	Name  string
	Label string
	Min   float64
	Max   float64
}

type StageState int

const (
	Pending StageState = iota
	Active
	Complete
)

func (s StageState) String() string {
	switch s {
	case Active:
		return "active"
	case Complete:
		return "complete"
	default:
		return "pending"
	}
}

// StageProgress is a stage as seen at one raw value.
type StageProgress struct {
	Stage
	State StageState
	// Sub is the fraction of this stage that is done, in [0,1].
	Sub float64
}

// View is the mapped state for a single observation.
type View struct {
	Stages  []StageProgress
	Active  int
	Overall float64
	Message string
}

// ActiveStage returns the stage currently in progress.
func (v View) ActiveStage() StageProgress {
	return v.Stages[v.Active]
}

var defaultStages = []Stage{
	{Name: "uploading", Label: "Uploading document", Min: 0, Max: 10},
	{Name: "analyzing", Label: "Analyzing layout", Min: 10, Max: 30},
	{Name: "extracting", Label: "Extracting text (OCR)", Min: 30, Max: 70},
	{Name: "refining", Label: "Refining with language model", Min: 70, Max: 90},
	{Name: "finalizing", Label: "Finalizing", Min: 90, Max: 100},
}

func init() {
	if err := Validate(defaultStages); err != nil {
		panic(err)
	}
}

// Stages returns a copy of the canonical stage table.
func Stages() []Stage {
	out := make([]Stage, len(defaultStages))
	copy(out, defaultStages)
	return out
}

// Validate checks that stages are ordered, non-empty and tile [0,100]
// without gaps or overlaps.
func Validate(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("stage table is empty")
	}
	if stages[0].Min != 0 {
		return fmt.Errorf("first stage %q must start at 0, got %v", stages[0].Name, stages[0].Min)
	}
	if last := stages[len(stages)-1]; last.Max != 100 {
		return fmt.Errorf("last stage %q must end at 100, got %v", last.Name, last.Max)
	}
	for i, s := range stages {
		if s.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if !(s.Min < s.Max) {
			return fmt.Errorf("stage %q is empty: [%v,%v)", s.Name, s.Min, s.Max)
		}
		if i > 0 && stages[i-1].Max != s.Min {
			return fmt.Errorf("stage %q starts at %v but %q ends at %v", s.Name, s.Min, stages[i-1].Name, stages[i-1].Max)
		}
	}
	return nil
}

// Map computes the stage view for raw using the canonical table.
func Map(raw float64, statusMessage string) View {
	return MapStages(defaultStages, raw, statusMessage)
}

// MapStages is Map over an arbitrary valid table. A value on a shared
// boundary belongs to the later stage; 100 belongs to the last one.
func MapStages(stages []Stage, raw float64, statusMessage string) View {
	raw = clamp(raw)
	v := View{
		Stages:  make([]StageProgress, len(stages)),
		Overall: raw,
	}
	last := len(stages) - 1
	for i, s := range stages {
		sp := StageProgress{Stage: s}
		switch {
		case i == last && raw >= s.Min:
			sp.State = Active
		case raw >= s.Max:
			sp.State = Complete
		case raw >= s.Min:
			sp.State = Active
		default:
			sp.State = Pending
		}
		switch sp.State {
		case Complete:
			sp.Sub = 1
		case Active:
			sp.Sub = math.Min(1, math.Max(0, (raw-s.Min)/(s.Max-s.Min)))
			v.Active = i
		}
		v.Stages[i] = sp
	}
	v.Message = statusMessage
	if v.Message == "" {
		v.Message = stages[v.Active].Label
	}
	return v
}

func clamp(raw float64) float64 {
	if math.IsNaN(raw) || raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}
