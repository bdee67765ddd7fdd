package chain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElioChen/iacta/pkg/xtb"
	"github.com/ElioChen/iacta/pkg/xyz"
)

// fakeEngine is an Engine whose optimizations converge instantly: each call
// lowers the energy by 0.1 Hartree and logs stepsPerOpt intermediate
// structures.
type fakeEngine struct {
	mu          sync.Mutex
	stepsPerOpt int
	calls       int
	failAtCall  int // 1-based; 0 = never fail
}

func (e *fakeEngine) Optimize(ctx context.Context, req xtb.OptRequest) error {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()

	if e.failAtCall != 0 && call == e.failAtCall {
		return errors.New("not converged")
	}

	in, err := xyz.ReadStructure(req.In, 0)
	if err != nil {
		return err
	}
	steps := e.stepsPerOpt
	if steps < 1 {
		steps = 1
	}
	trajectory := make([]xyz.Structure, steps)
	for i := range trajectory {
		energy := in.Energy - 0.1*float64(i+1)/float64(steps)
		trajectory[i] = testStructure(in.Natoms, energy)
	}

	final := trajectory[steps-1]
	if err := xyz.WriteStructure(req.Out, final); err != nil {
		return err
	}
	if req.Log != "" {
		return xyz.WriteTrajectory(req.Log, trajectory)
	}
	return nil
}

func (e *fakeEngine) Metadyn(ctx context.Context, req xtb.MetadynRequest) error {
	return errors.New("not used")
}

func (e *fakeEngine) Cregen(ctx context.Context, req xtb.CregenRequest) error {
	return errors.New("not used")
}

func testStructure(natoms int, energy float64) xyz.Structure {
	body := ""
	for i := 0; i < natoms; i++ {
		body += "H    0.00000000   0.00000000   0.00000000\n"
	}
	return xyz.Structure{
		Natoms:  natoms,
		Energy:  energy,
		Comment: fmt.Sprintf(" energy: %.8f", energy),
		Body:    body,
	}
}

func writeSeed(t *testing.T, dir string, energy float64) string {
	t.Helper()
	path := filepath.Join(dir, "seed.xyz")
	require.NoError(t, xyz.WriteStructure(path, testStructure(2, energy)))
	return path
}

func TestRunEmptyConstraints(t *testing.T) {
	dir := t.TempDir()
	eng := &fakeEngine{}

	res, err := Run(context.Background(), eng, writeSeed(t, dir, -1.0), nil, Options{Scratch: dir})
	require.NoError(t, err)
	assert.Empty(t, res.Structures)
	assert.Empty(t, res.Energies)
	assert.Empty(t, res.OptIndices)
	assert.Zero(t, eng.calls)
}

func TestRunChainsSteps(t *testing.T) {
	dir := t.TempDir()
	eng := &fakeEngine{stepsPerOpt: 3}
	constraints := []xtb.Constraint{
		xtb.Stretch(1, 2, 1.0, 0.5),
		xtb.Stretch(1, 2, 1.2, 0.5),
		xtb.Stretch(1, 2, 1.4, 0.5),
		nil, // final free relaxation
	}

	res, err := Run(context.Background(), eng, writeSeed(t, dir, -1.0), constraints, Options{Scratch: dir})
	require.NoError(t, err)

	assert.Equal(t, len(constraints), eng.calls)
	require.Len(t, res.Structures, 12)
	require.Len(t, res.Energies, 12)

	// One converged index per constraint, strictly increasing, each the
	// last structure its step contributed.
	require.Len(t, res.OptIndices, len(constraints))
	assert.Equal(t, []int{2, 5, 8, 11}, res.OptIndices)

	// Chained, not restarted: each step starts from the previous step's
	// converged energy.
	for i, e := range res.Energies {
		assert.InDelta(t, -1.0-0.1*float64(i+1)/3, e, 1e-7, "structure %d", i)
	}
}

func TestRunStepFailureAborts(t *testing.T) {
	dir := t.TempDir()
	eng := &fakeEngine{stepsPerOpt: 2, failAtCall: 3}
	constraints := []xtb.Constraint{
		xtb.Stretch(1, 2, 1.0, 0.5),
		xtb.Stretch(1, 2, 1.2, 0.5),
		xtb.Stretch(1, 2, 1.4, 0.5),
		xtb.Stretch(1, 2, 1.6, 0.5),
	}

	_, err := Run(context.Background(), eng, writeSeed(t, dir, -1.0), constraints, Options{Scratch: dir})
	require.Error(t, err)
	assert.ErrorContains(t, err, "step 2 of 4")
	// The chain stops at the broken link.
	assert.Equal(t, 3, eng.calls)
}

func TestRunCleansScratch(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch")
	require.NoError(t, os.Mkdir(scratch, 0o755))

	eng := &fakeEngine{stepsPerOpt: 1}
	constraints := []xtb.Constraint{xtb.Stretch(1, 2, 1.0, 0.5), nil}

	_, err := Run(context.Background(), eng, writeSeed(t, dir, -1.0), constraints, Options{Scratch: scratch})
	require.NoError(t, err)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left, "scratch files must be removed")

	// Also on failure.
	eng = &fakeEngine{stepsPerOpt: 1, failAtCall: 1}
	_, err = Run(context.Background(), eng, writeSeed(t, dir, -1.0), constraints, Options{Scratch: scratch})
	require.Error(t, err)
	left, err = os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	eng := &fakeEngine{stepsPerOpt: 2}
	constraints := []xtb.Constraint{
		xtb.Stretch(1, 2, 1.0, 0.5),
		xtb.Stretch(1, 2, 1.2, 0.5),
	}

	res, err := Run(context.Background(), eng, writeSeed(t, dir, -1.0), constraints, Options{Scratch: dir})
	require.NoError(t, err)

	out := filepath.Join(dir, "out")
	require.NoError(t, Dump(out, res, DumpOptions{Concat: true, Extra: true}))

	converged, err := xyz.ReadTrajectory(filepath.Join(out, "opt.xyz"))
	require.NoError(t, err)
	require.Len(t, converged, 2)
	assert.Equal(t, res.Structures[1], converged[0])
	assert.Equal(t, res.Structures[3], converged[1])

	all, err := xyz.ReadTrajectory(filepath.Join(out, "log.xyz"))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	for _, name := range []string{"Eopt", "indices", "E"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	// Per-step files without Concat.
	out2 := filepath.Join(dir, "out2")
	require.NoError(t, Dump(out2, res, DumpOptions{}))
	for i := range res.OptIndices {
		_, err := os.Stat(filepath.Join(out2, fmt.Sprintf("opt%04d.xyz", i)))
		assert.NoError(t, err)
	}
}
