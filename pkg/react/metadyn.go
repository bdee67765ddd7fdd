package react

import (
	"context"
	"fmt"
	"os"

	"github.com/ElioChen/iacta/pkg/pool"
)

// MetadynamicsSearch samples transition conformers around every lane's
// initial structure. Lanes are fully independent, so all jobs are submitted
// to the pool at once; any job failure fails the stage.
func (p *Pipeline) MetadynamicsSearch(ctx context.Context, lanes []int) (err error) {
	st := p.Recorder.Stage("metadyn")
	defer func() { st.End(err) }()

	if err = os.MkdirAll(p.MetadynDir(), 0o755); err != nil {
		return err
	}

	var tasks []pool.Task[struct{}]
	var names []string
	for _, lane := range lanes {
		for ji, set := range p.Params.MetadynJobs {
			tasks = append(tasks, &MetadynJob{
				Engine:     p.Engine,
				In:         p.initFile(lane),
				Out:        p.mtdFile(lane, ji),
				Wall:       p.Params.Wall,
				Metadyn:    set.Metadyn,
				MD:         set.MD,
				Constraint: p.Constraints[lane],
			})
			names = append(names, fmt.Sprintf("mtd%04d_%02d", lane, ji))
		}
	}
	p.Logger.Info("running metadynamics jobs", "jobs", len(tasks), "threads", p.Threads)

	results := pool.Run(ctx, p.Threads, tasks, pool.WithOnDone(func(i int, jobErr error) {
		st.Job(names[i], jobErr)
	}))
	return pool.FirstError(results)
}
