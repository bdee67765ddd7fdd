package react

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ElioChen/iacta/pkg/manifest"
	"github.com/ElioChen/iacta/pkg/pool"
	"github.com/ElioChen/iacta/pkg/xtb"
	"github.com/ElioChen/iacta/pkg/xyz"
)

// MetadynamicsRefine turns each lane's raw metadynamics output into a
// pruned conformer ensemble: every sampled conformer is loosely optimized
// under the lane's constraint, converged results are concatenated and the
// ensemble is handed to the engine's conformer selection against the
// reference structure.
//
// A failed conformer optimization is counted and dropped, not fatal: this
// is an intermediate sampling stage and the converged subset is still a
// usable ensemble.
func (p *Pipeline) MetadynamicsRefine(ctx context.Context, reference string, lanes []int) (err error) {
	st := p.Recorder.Stage("refine")
	defer func() { st.End(err) }()

	if err = os.MkdirAll(p.CREDir(), 0o755); err != nil {
		return err
	}

	for _, lane := range lanes {
		if lerr := p.refineLane(ctx, st, reference, lane); lerr != nil {
			err = fmt.Errorf("react: refine lane %d: %w", lane, lerr)
			return err
		}
	}
	return nil
}

func (p *Pipeline) refineLane(ctx context.Context, st *manifest.Stage, reference string, lane int) error {
	files, err := filepath.Glob(p.mtdGlob(lane))
	if err != nil {
		return err
	}
	var structures []xyz.Structure
	for _, file := range files {
		ls, err := xyz.ReadTrajectory(file)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		structures = append(structures, ls...)
	}
	p.Logger.Info("optimizing sampled conformers", "lane", lane, "count", len(structures))

	tasks := make([]pool.Task[xyz.Structure], len(structures))
	for i, s := range structures {
		tasks[i] = &QuickOptJob{
			Engine:     p.Engine,
			Structure:  s,
			Level:      p.Params.OptCregen,
			Wall:       p.Params.Wall,
			Constraint: p.Constraints[lane],
			Scratch:    p.Scratch,
		}
	}
	results := pool.Run(ctx, p.Threads, tasks, pool.WithOnDone(func(i int, jobErr error) {
		st.Job(fmt.Sprintf("refine%04d_%04d", lane, i), jobErr)
	}))

	converged, errored := pool.Partition(results)
	p.Logger.Info("conformer optimization finished",
		"lane", lane, "converged", len(converged), "errors", len(errored))

	fn := p.creFile(lane)
	if err := xyz.WriteTrajectory(fn, converged); err != nil {
		return err
	}

	// Selection is delegated wholesale to the engine; a selection failure
	// leaves the unpruned ensemble in place, which is safe, just larger.
	if err := p.Engine.Cregen(ctx, xtb.CregenRequest{
		Reference:  reference,
		Candidates: fn,
		Out:        fn,
		EWin:       p.Params.EWin,
		RThr:       p.Params.RThr,
		EThr:       p.Params.EThr,
		BThr:       p.Params.BThr,
	}); err != nil {
		p.Logger.Warn("conformer selection failed, keeping unpruned ensemble",
			"lane", lane, "error", err)
	}

	selected, err := xyz.ReadTrajectory(fn)
	if err != nil {
		return err
	}
	p.Logger.Info("conformers selected for reactions", "lane", lane, "count", len(selected))
	return nil
}
