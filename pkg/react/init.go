package react

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ElioChen/iacta/pkg/chain"
	"github.com/ElioChen/iacta/pkg/xtb"
	"github.com/ElioChen/iacta/pkg/xyz"
)

// GenerateInitialStructures runs one long metadynamics sampling from the
// seed geometry, then grows one optimized structure per lane: the next
// candidate from the sampled pool (wrapping round-robin over the pool) is
// locally optimized at the first constraint and chain-stretched up to the
// lane's target constraint. Produces init/opt%04d.xyz per lane.
func (p *Pipeline) GenerateInitialStructures(ctx context.Context, seedXYZ string, lanes []int) (err error) {
	st := p.Recorder.Stage("init")
	defer func() { st.End(err) }()

	outdir := p.InitDir()
	if err = os.MkdirAll(outdir, 0o755); err != nil {
		return err
	}
	p.Logger.Info("generating diverse initial structures", "lanes", len(lanes))

	seed, err := xyz.ReadStructure(seedXYZ, 0)
	if err != nil {
		return err
	}

	// Propagation time scales with system size.
	md := append(append([]string{}, p.Params.InitMD...),
		fmt.Sprintf("time=%f", p.Params.InitTimePerAtom*float64(seed.Natoms)))
	mtd := append(append([]string{}, p.Params.InitMetadyn...),
		fmt.Sprintf("save=%d", p.Params.MTDSave))

	sampled := filepath.Join(outdir, "init_mtd.xyz")
	err = p.Engine.Metadyn(ctx, xtb.MetadynRequest{
		In:      seedXYZ,
		Out:     sampled,
		FailOut: filepath.Join(outdir, "FAIL_init_mtd"),
		XControl: xtb.XControl{
			Wall:      p.Params.Wall,
			Metadyn:   mtd,
			MD:        md,
			CMA:       true,
			Constrain: p.Constraints[0],
		},
	})
	st.Job("init_mtd", err)
	if err != nil {
		return err
	}

	pool, err := xyz.ReadTrajectory(sampled)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		return fmt.Errorf("react: initial metadynamics produced no structures")
	}
	p.Logger.Info("sampled starting structures", "count", len(pool))
	p.Rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	var refE float64
	curr := 0
	for li, lane := range lanes {
		laneErr := p.growLane(ctx, pool[curr], lane)
		st.Job(fmt.Sprintf("stretch%04d", lane), laneErr)
		if laneErr != nil {
			return fmt.Errorf("react: lane %d: %w", lane, laneErr)
		}

		s, rerr := xyz.ReadStructure(p.initFile(lane), 0)
		if rerr != nil {
			return rerr
		}
		if li == 0 {
			refE = s.Energy
		}
		// Operator sanity check: the search should be climbing a barrier,
		// not relaxing back to the reactant.
		p.Logger.Info("initial structure ready",
			"lane", lane,
			"energy_hartree", s.Energy,
			"gap_kcal_mol", xyz.HartreeToKcalMol(s.Energy-refE))

		curr++
		if curr == len(pool) {
			curr = 0
		}
	}
	return nil
}

// growLane optimizes one pool candidate at the first constraint and chains
// it up to the lane's target, writing the final structure to the lane's
// init file.
func (p *Pipeline) growLane(ctx context.Context, candidate xyz.Structure, lane int) error {
	guess := filepath.Join(p.InitDir(), fmt.Sprintf("mtdi%04d.xyz", lane))
	if err := xyz.WriteStructure(guess, candidate); err != nil {
		return err
	}

	if err := p.Engine.Optimize(ctx, xtb.OptRequest{
		In:    guess,
		Out:   guess,
		Level: p.Params.OptCregen,
		XControl: xtb.XControl{
			Wall:      p.Params.Wall,
			CMA:       true,
			Constrain: p.Constraints[0],
		},
	}); err != nil {
		return err
	}

	final, err := xyz.ReadStructure(guess, 0)
	if err != nil {
		return err
	}
	if lane > 0 {
		res, err := chain.Run(ctx, p.Engine, guess, p.Constraints[1:lane+1], chain.Options{
			Level:   p.Params.OptLevel,
			Wall:    p.Params.Wall,
			Scratch: p.Scratch,
		})
		if err != nil {
			return err
		}
		final = res.Structures[res.OptIndices[len(res.OptIndices)-1]]
	}
	return xyz.WriteStructure(p.initFile(lane), final)
}
