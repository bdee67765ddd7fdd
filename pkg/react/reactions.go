package react

import (
	"context"
	"fmt"
	"os"

	"github.com/ElioChen/iacta/pkg/pool"
	"github.com/ElioChen/iacta/pkg/worklist"
	"github.com/ElioChen/iacta/pkg/xyz"
)

// Reactions builds the global worklist from the refined ensembles and grows
// one reaction trajectory per entry. This stage is the final deliverable,
// so any single job failure aborts it: a silently dropped reaction is worse
// than a hard stop the operator can re-investigate.
func (p *Pipeline) Reactions(ctx context.Context, lanes []int) (err error) {
	st := p.Recorder.Stage("reactions")
	defer func() { st.End(err) }()

	byLane := make(map[int][]xyz.Structure, len(lanes))
	for _, lane := range lanes {
		// Selection sorted these, so the front is the lowest-energy one.
		structures, rerr := xyz.ReadTrajectory(p.creFile(lane))
		if rerr != nil {
			err = fmt.Errorf("react: lane %d ensemble: %w", lane, rerr)
			return err
		}
		p.Logger.Info("loaded refined ensemble", "lane", lane, "count", len(structures))
		byLane[lane] = structures
	}

	entries := worklist.Build(byLane)
	worklist.Shuffle(entries, p.Rand)
	p.Logger.Info("reaction worklist built", "reactions", len(entries), "threads", p.Threads)

	if err = os.MkdirAll(p.ReactionsDir(), 0o755); err != nil {
		return err
	}

	tasks := make([]pool.Task[struct{}], len(entries))
	for i, e := range entries {
		tasks[i] = &ReactionJob{
			Engine:      p.Engine,
			Structure:   e.Structure,
			Lane:        e.Lane,
			Dir:         p.reactionDir(i),
			Constraints: p.Constraints,
			Level:       p.Params.OptLevel,
			Wall:        p.Params.Wall,
			Scratch:     p.Scratch,
		}
	}
	results := pool.Run(ctx, p.Threads, tasks, pool.WithOnDone(func(i int, jobErr error) {
		st.Job(fmt.Sprintf("reaction%05d", i), jobErr)
	}))

	err = pool.FirstError(results)
	return err
}
