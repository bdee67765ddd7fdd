// Package config holds the run parameters of a reaction search.
//
// Numerical parameters live in a YAML file mirroring parameters shipped with
// the program; run-specific inputs (geometry, bond, output directory,
// threads, restart level) form an immutable RunConfig built once at startup
// and passed by value to every stage. Per-stage variations are derived
// copies, never in-place mutation.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrOutputExists = errors.New("config: output directory already exists")
	ErrBadRestart   = errors.New("config: restart level out of range")
)

// MetadynSet is one metadynamics parameter set. The search stage runs one
// job per set per lane, so several sets widen the sampling of each lane.
type MetadynSet struct {
	Metadyn []string `yaml:"metadyn"`
	MD      []string `yaml:"md"`
}

// Params are the numerical parameters of the search.
type Params struct {
	Wall      []string `yaml:"wall"`
	OptLevel  string   `yaml:"optlevel"`  // level for chained optimizations
	OptCregen string   `yaml:"optcregen"` // level for quick conformer optimizations

	// Initial structure generation.
	InitMetadyn     []string `yaml:"init_mtdjob"`
	InitMD          []string `yaml:"mtdmd"`
	InitTimePerAtom float64  `yaml:"init_time_per_atom"` // ps of sampling per atom
	MTDSave         int      `yaml:"mtdsave"`

	// Per-lane metadynamics search.
	MetadynJobs []MetadynSet `yaml:"metadyn_jobs"`

	// Conformer selection thresholds.
	EWin float64 `yaml:"ewin"`
	RThr float64 `yaml:"rthr"`
	EThr float64 `yaml:"ethr"`
	BThr float64 `yaml:"bthr"`

	// Lane selection: explicit indices win over the stride range.
	MTDIndices []int `yaml:"mtdi"`
	MTDLow     int   `yaml:"mtd_low"`
	MTDHigh    int   `yaml:"mtd_high"`
	MTDStep    int   `yaml:"mtd_step"`
}

// DefaultParams returns the built-in parameter set.
func DefaultParams() Params {
	return Params{
		Wall:            []string{"potential=logfermi", "sphere: auto, all"},
		OptLevel:        "tight",
		OptCregen:       "loose",
		InitMetadyn:     []string{"kpush=0.2", "alp=0.8"},
		InitMD:          []string{"step=2", "shake=0", "temp=500"},
		InitTimePerAtom: 0.5,
		MTDSave:         100,
		MetadynJobs: []MetadynSet{
			{Metadyn: []string{"kpush=0.2", "alp=0.8"}, MD: []string{"step=2", "shake=0", "time=20"}},
			{Metadyn: []string{"kpush=0.05", "alp=0.5"}, MD: []string{"step=2", "shake=0", "time=20"}},
		},
		EWin:    6.0,
		RThr:    0.125,
		EThr:    0.05,
		BThr:    0.01,
		MTDLow:  0,
		MTDHigh: 80,
		MTDStep: 10,
	}
}

// LoadParams reads a YAML parameter file over the defaults.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("config: %s: %w", path, err)
	}
	return p, nil
}

// Lanes returns the configured metadynamics lane indices, sorted and
// deduplicated, clipped to the npts-point constraint sequence.
func (p Params) Lanes(npts int) []int {
	var raw []int
	if len(p.MTDIndices) > 0 {
		raw = p.MTDIndices
	} else {
		for i := p.MTDLow; i < p.MTDHigh; i += p.MTDStep {
			raw = append(raw, i)
		}
	}

	seen := make(map[int]bool)
	var lanes []int
	for _, i := range raw {
		if i < 0 || i >= npts || seen[i] {
			continue
		}
		seen[i] = true
		lanes = append(lanes, i)
	}
	sort.Ints(lanes)
	return lanes
}

// RunConfig is the immutable description of one pipeline run.
type RunConfig struct {
	Geometry  string // seed geometry xyz file
	Atoms     [2]int // bond to stretch, 1-indexed
	OutDir    string
	Overwrite bool
	Threads   int
	Restart   RestartLevel

	// Bond stretch discretization: factors of the equilibrium length.
	StretchLow    float64
	StretchHigh   float64
	StretchPoints int
	Force         float64 // restraint force constant

	// Engine settings threaded to the driver.
	GFN     string
	ETemp   string
	Charge  string
	UHF     string
	Solvent string
	Timeout time.Duration
	Scratch string

	Params Params
}

// Validate reports the first fatal configuration problem.
func (c RunConfig) Validate() error {
	if c.Geometry == "" {
		return errors.New("config: no seed geometry")
	}
	if c.Atoms[0] < 1 || c.Atoms[1] < 1 || c.Atoms[0] == c.Atoms[1] {
		return fmt.Errorf("config: bad atom pair %d,%d (1-indexed, distinct)", c.Atoms[0], c.Atoms[1])
	}
	if c.StretchPoints < 2 {
		return fmt.Errorf("config: need at least 2 stretch points, have %d", c.StretchPoints)
	}
	if c.StretchLow >= c.StretchHigh {
		return fmt.Errorf("config: bad stretch limits %g..%g", c.StretchLow, c.StretchHigh)
	}
	if c.Threads < 1 {
		return fmt.Errorf("config: need at least 1 thread, have %d", c.Threads)
	}
	if !c.Restart.Valid() {
		return fmt.Errorf("%w: %d", ErrBadRestart, c.Restart)
	}
	return nil
}

// EngineArgs returns the extra command-line arguments for the engine driver.
func (c RunConfig) EngineArgs() []string {
	var args []string
	if c.GFN != "" {
		args = append(args, "--gfn", c.GFN)
	}
	if c.ETemp != "" {
		args = append(args, "--etemp", c.ETemp)
	}
	if c.Charge != "" {
		args = append(args, "--chrg", c.Charge)
	}
	if c.UHF != "" {
		args = append(args, "--uhf", c.UHF)
	}
	if c.Solvent != "" {
		args = append(args, "--gbsa", c.Solvent)
	}
	return args
}
