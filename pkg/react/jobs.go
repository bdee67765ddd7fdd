package react

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ElioChen/iacta/pkg/chain"
	"github.com/ElioChen/iacta/pkg/xtb"
	"github.com/ElioChen/iacta/pkg/xyz"
)

// MetadynJob samples conformers from one lane's optimized structure. One
// lane may carry several of these, one per metadynamics parameter set.
type MetadynJob struct {
	Engine     xtb.Engine
	In         string
	Out        string
	Wall       []string
	Metadyn    []string
	MD         []string
	Constraint xtb.Constraint
}

func (j *MetadynJob) Execute(ctx context.Context) (struct{}, error) {
	if err := os.MkdirAll(filepath.Dir(j.Out), 0o755); err != nil {
		return struct{}{}, err
	}
	err := j.Engine.Metadyn(ctx, xtb.MetadynRequest{
		In:  j.In,
		Out: j.Out,
		XControl: xtb.XControl{
			Wall:      j.Wall,
			Metadyn:   j.Metadyn,
			MD:        j.MD,
			Constrain: j.Constraint,
		},
	})
	return struct{}{}, err
}

// QuickOptJob loosely optimizes one sampled conformer under its lane's
// constraint and returns the relaxed structure.
type QuickOptJob struct {
	Engine     xtb.Engine
	Structure  xyz.Structure
	Level      string
	Wall       []string
	Constraint xtb.Constraint
	Scratch    string
}

func (j *QuickOptJob) Execute(ctx context.Context) (xyz.Structure, error) {
	path := filepath.Join(j.Scratch, "qopt_"+uuid.New().String()+".xyz")
	if err := xyz.WriteStructure(path, j.Structure); err != nil {
		return xyz.Structure{}, err
	}
	defer os.Remove(path)

	err := j.Engine.Optimize(ctx, xtb.OptRequest{
		In:    path,
		Out:   path,
		Level: j.Level,
		XControl: xtb.XControl{
			Wall:      j.Wall,
			CMA:       true,
			Constrain: j.Constraint,
		},
	})
	if err != nil {
		return xyz.Structure{}, err
	}
	return xyz.ReadStructure(path, 0)
}

// ReactionJob grows one full reactant→product trajectory from a seed
// structure sampled at one lane of the constraint sequence.
type ReactionJob struct {
	Engine      xtb.Engine
	Structure   xyz.Structure
	Lane        int
	Dir         string
	Constraints []xtb.Constraint
	Level       string
	Wall        []string
	Scratch     string
}

func (j *ReactionJob) Execute(ctx context.Context) (struct{}, error) {
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return struct{}{}, err
	}
	opts := chain.Options{Level: j.Level, Wall: j.Wall, Scratch: j.Scratch}

	initial := filepath.Join(j.Dir, "initial.xyz")
	if err := xyz.WriteStructure(initial, j.Structure); err != nil {
		return struct{}{}, err
	}

	// Forward: from the lane to the end of the sequence, then one free
	// relaxation, modelling product formation.
	fwd := make([]xtb.Constraint, 0, len(j.Constraints)-j.Lane+1)
	fwd = append(fwd, j.Constraints[j.Lane:]...)
	fwd = append(fwd, nil)
	fres, err := chain.Run(ctx, j.Engine, initial, fwd, opts)
	if err != nil {
		return struct{}{}, fmt.Errorf("react: lane %d forward: %w", j.Lane, err)
	}

	// Backward: seeded from the first forward structure, the point right
	// after the initial constrained optimization, so the two chains stay
	// geometrically continuous at the junction.
	backSeed := filepath.Join(j.Dir, "initial_backward.xyz")
	if err := xyz.WriteStructure(backSeed, fres.Structures[0]); err != nil {
		return struct{}{}, err
	}
	bwd := make([]xtb.Constraint, 0, j.Lane+1)
	for i := j.Lane - 1; i >= 0; i-- {
		bwd = append(bwd, j.Constraints[i])
	}
	bwd = append(bwd, nil)
	bres, err := chain.Run(ctx, j.Engine, backSeed, bwd, opts)
	if err != nil {
		return struct{}{}, fmt.Errorf("react: lane %d backward: %w", j.Lane, err)
	}

	merged := mergeChains(bres, fres)
	if err := chain.Dump(j.Dir, merged, chain.DumpOptions{Concat: true, Extra: true}); err != nil {
		return struct{}{}, err
	}
	return struct{}{}, nil
}

// mergeChains concatenates the reversed backward chain and the forward
// chain into one continuous reactant→product coordinate, remapping the
// converged-structure indices into the merged trajectory.
func mergeChains(backward, forward chain.Result) chain.Result {
	nb := len(backward.Structures)
	merged := chain.Result{
		Structures: make([]xyz.Structure, 0, nb+len(forward.Structures)),
		Energies:   make([]float64, 0, nb+len(forward.Energies)),
		OptIndices: make([]int, 0, len(backward.OptIndices)+len(forward.OptIndices)),
	}

	for i := nb - 1; i >= 0; i-- {
		merged.Structures = append(merged.Structures, backward.Structures[i])
		merged.Energies = append(merged.Energies, backward.Energies[i])
	}
	merged.Structures = append(merged.Structures, forward.Structures...)
	merged.Energies = append(merged.Energies, forward.Energies...)

	// Backward step k converged at OptIndices[k]; reversed, that structure
	// sits at nb-1-OptIndices[k]. Walking k from last to first keeps the
	// merged indices ascending along the coordinate.
	for k := len(backward.OptIndices) - 1; k >= 0; k-- {
		merged.OptIndices = append(merged.OptIndices, nb-1-backward.OptIndices[k])
	}
	for _, oi := range forward.OptIndices {
		merged.OptIndices = append(merged.OptIndices, nb+oi)
	}
	return merged
}
