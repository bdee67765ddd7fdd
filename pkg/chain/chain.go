// Package chain implements chained constrained optimization: a structure is
// relaxed under each constraint of an ordered sequence in turn, the converged
// output of step i seeding step i+1. The chaining is what lets a molecule
// follow the reaction coordinate instead of snapping between unrelated
// basins.
package chain

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ElioChen/iacta/pkg/xtb"
	"github.com/ElioChen/iacta/pkg/xyz"
)

// Options configures one chained optimization.
type Options struct {
	Level   string   // engine optimization level
	Wall    []string // confinement wall, applied at every step
	Scratch string   // directory for the per-invocation scratch pair
}

// Result is everything a chain visited: every intermediate structure of
// every step, the parallel energies, and for each constraint the index of
// its converged (last) structure within Structures.
type Result struct {
	Structures []xyz.Structure
	Energies   []float64
	OptIndices []int
}

// Run optimizes the structure at initialXYZ through constraints in order.
// A nil entry in constraints means free relaxation. An empty constraint
// list is a no-op and returns an empty Result.
//
// Any step failure aborts the remaining chain and is returned to the
// caller: a broken link invalidates every downstream link.
func Run(ctx context.Context, eng xtb.Engine, initialXYZ string, constraints []xtb.Constraint, opts Options) (Result, error) {
	res := Result{
		Structures: []xyz.Structure{},
		Energies:   []float64{},
		OptIndices: []int{},
	}
	if len(constraints) == 0 {
		return res, nil
	}

	// Scratch pair, uniquely named so concurrent chains never collide.
	id := uuid.New().String()
	current := filepath.Join(opts.Scratch, "chain_"+id+".xyz")
	log := filepath.Join(opts.Scratch, "chain_"+id+"_log.xyz")
	if err := copyFile(initialXYZ, current); err != nil {
		return res, fmt.Errorf("chain: seed: %w", err)
	}
	defer os.Remove(current)
	defer os.Remove(log)

	for i, c := range constraints {
		err := eng.Optimize(ctx, xtb.OptRequest{
			In:    current,
			Out:   current,
			Log:   log,
			Level: opts.Level,
			XControl: xtb.XControl{
				Wall:      opts.Wall,
				Constrain: c,
			},
		})
		if err != nil {
			return res, fmt.Errorf("chain: step %d of %d: %w", i, len(constraints), err)
		}

		steps, err := xyz.ReadTrajectory(log)
		if err != nil {
			return res, fmt.Errorf("chain: step %d of %d: read log: %w", i, len(constraints), err)
		}
		if len(steps) == 0 {
			return res, fmt.Errorf("chain: step %d of %d: empty optimization log", i, len(constraints))
		}
		os.Remove(log) // next step writes a fresh log

		res.Structures = append(res.Structures, steps...)
		res.Energies = append(res.Energies, xyz.Energies(steps)...)
		res.OptIndices = append(res.OptIndices, len(res.Structures)-1)
	}
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
