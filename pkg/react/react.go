// Package react drives the four stages of the reaction search pipeline:
// initial structure generation, metadynamics search, metadynamics
// refinement, and reaction construction.
//
// Each stage consumes the previous stage's on-disk artifacts and produces
// its own under the working directory, which doubles as the restart
// checkpoint. Stages run their jobs on a per-stage bounded pool, so a stage
// only starts once every job of the stage before it has finished.
package react

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"

	"github.com/ElioChen/iacta/pkg/config"
	"github.com/ElioChen/iacta/pkg/manifest"
	"github.com/ElioChen/iacta/pkg/xtb"
)

// ErrReactantNotFound is the fatal configuration failure raised when no
// initial structure matches the reactant: continuing would search from an
// undefined starting point.
var ErrReactantNotFound = errors.New("react: reactant not found among initial structures")

// Pipeline holds everything shared by the stage drivers. The constraint
// sequence is immutable once constructed; all stages index into it.
type Pipeline struct {
	Engine      xtb.Engine
	Workdir     string
	Scratch     string
	Constraints []xtb.Constraint
	Params      config.Params
	Threads     int
	Logger      *slog.Logger
	Recorder    *manifest.Recorder
	Rand        *rand.Rand
}

// NewPipeline builds a pipeline with a default logger and rng. The caller
// may override any field before running the first stage.
func NewPipeline(eng xtb.Engine, workdir string, constraints []xtb.Constraint, params config.Params) *Pipeline {
	return &Pipeline{
		Engine:      eng,
		Workdir:     workdir,
		Scratch:     workdir,
		Constraints: constraints,
		Params:      params,
		Threads:     1,
		Logger:      slog.Default(),
		Rand:        rand.New(rand.NewSource(rand.Int63())),
	}
}

// Stage output directories; their existence is the checkpoint contract.
func (p *Pipeline) InitDir() string      { return filepath.Join(p.Workdir, "init") }
func (p *Pipeline) MetadynDir() string   { return filepath.Join(p.Workdir, "metadyn") }
func (p *Pipeline) CREDir() string       { return filepath.Join(p.Workdir, "CRE") }
func (p *Pipeline) ReactionsDir() string { return filepath.Join(p.Workdir, "reactions") }

func (p *Pipeline) reactionDir(i int) string {
	return filepath.Join(p.ReactionsDir(), fmt.Sprintf("%05d", i))
}

func (p *Pipeline) initFile(lane int) string {
	return filepath.Join(p.InitDir(), fmt.Sprintf("opt%04d.xyz", lane))
}

func (p *Pipeline) creFile(lane int) string {
	return filepath.Join(p.CREDir(), fmt.Sprintf("mtd%04d.xyz", lane))
}

func (p *Pipeline) mtdFile(lane, job int) string {
	return filepath.Join(p.MetadynDir(), fmt.Sprintf("mtd%04d_%02d.xyz", lane, job))
}

func (p *Pipeline) mtdGlob(lane int) string {
	return filepath.Join(p.MetadynDir(), fmt.Sprintf("mtd%04d_*.xyz", lane))
}
