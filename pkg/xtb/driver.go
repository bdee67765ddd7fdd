// Package xtb is the boundary to the external quantum-chemistry engine.
//
// Every computation is an opaque, synchronous process invocation: geometry
// in, energy and geometry out, or failure. The pipeline never inspects the
// engine's internals beyond its output files.
package xtb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Engine is the computation interface the pipeline stages depend on. All
// calls block until the underlying computation finishes or fails.
type Engine interface {
	// Optimize relaxes the geometry at req.In under req.XControl and writes
	// the converged geometry to req.Out. If req.Log is non-empty the full
	// optimization trajectory is written there.
	Optimize(ctx context.Context, req OptRequest) error

	// Metadyn runs a biased-dynamics sampling from req.In and writes the
	// sampled trajectory to req.Out.
	Metadyn(ctx context.Context, req MetadynRequest) error

	// Cregen prunes the candidate ensemble against a reference structure
	// using an energy window and geometric similarity thresholds.
	Cregen(ctx context.Context, req CregenRequest) error
}

// OptRequest describes one geometry optimization.
type OptRequest struct {
	In       string
	Out      string
	Log      string // optional trajectory of all optimization steps
	Level    string // engine optimization level, e.g. "tight"
	XControl XControl
}

// MetadynRequest describes one metadynamics sampling run.
type MetadynRequest struct {
	In       string
	Out      string
	FailOut  string // optional: on failure, the engine log is kept here
	XControl XControl
}

// CregenRequest describes one conformer selection call.
type CregenRequest struct {
	Reference  string
	Candidates string
	Out        string
	EWin       float64 // energy window, kcal/mol
	RThr       float64 // RMSD threshold
	EThr       float64 // energy threshold
	BThr       float64 // rotational constant threshold
}

// Driver runs xtb and crest as subprocesses. It implements Engine.
//
// Each invocation gets a private working directory under Scratch, uniquely
// named so concurrent jobs never collide. The directory is removed after the
// call unless KeepScratch is set.
type Driver struct {
	Bin       string        // xtb executable, default "xtb"
	CrestBin  string        // crest executable, default "crest"
	Scratch   string        // parent directory for per-call scratch
	ExtraArgs []string      // e.g. --gfn 2, --chrg 1, --gbsa h2o
	Timeout   time.Duration // per call; zero means no limit
	KeepScratch bool
	Logger    *slog.Logger
}

// NewDriver returns a Driver with default binary names, scratching under dir.
func NewDriver(dir string) *Driver {
	return &Driver{
		Bin:      "xtb",
		CrestBin: "crest",
		Scratch:  dir,
		Logger:   slog.Default(),
	}
}

func (d *Driver) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout > 0 {
		return context.WithTimeout(ctx, d.Timeout)
	}
	return context.WithCancel(ctx)
}

// scratchDir creates the private working directory for one invocation.
func (d *Driver) scratchDir(op string) (string, error) {
	dir := filepath.Join(d.Scratch, op+"_"+uuid.New().String())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("xtb: scratch: %w", err)
	}
	return dir, nil
}

func (d *Driver) cleanup(dir string) {
	if d.KeepScratch {
		return
	}
	os.RemoveAll(dir)
}

func (d *Driver) run(ctx context.Context, op, bin, dir string, args []string) error {
	ctx, cancel := d.callContext(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &RunError{Op: op, Args: args, Output: tail(string(out), 20), Err: err}
	}
	return nil
}

// Optimize implements Engine.
func (d *Driver) Optimize(ctx context.Context, req OptRequest) error {
	dir, err := d.scratchDir("opt")
	if err != nil {
		return err
	}
	defer d.cleanup(dir)

	in, err := stageInput(req.In, dir)
	if err != nil {
		return err
	}
	xc := filepath.Join(dir, "xcontrol")
	if err := os.WriteFile(xc, []byte(req.XControl.Render()), 0o644); err != nil {
		return err
	}

	args := []string{in, "--opt", req.Level, "--input", xc}
	args = append(args, d.ExtraArgs...)
	if err := d.run(ctx, "optimize", d.Bin, dir, args); err != nil {
		return err
	}

	if err := copyFile(filepath.Join(dir, "xtbopt.xyz"), req.Out); err != nil {
		return &RunError{Op: "optimize", Args: args, Err: fmt.Errorf("no converged geometry: %w", err)}
	}
	if req.Log != "" {
		if err := copyFile(filepath.Join(dir, "xtbopt.log"), req.Log); err != nil {
			return &RunError{Op: "optimize", Args: args, Err: fmt.Errorf("no optimization log: %w", err)}
		}
	}
	return nil
}

// Metadyn implements Engine.
func (d *Driver) Metadyn(ctx context.Context, req MetadynRequest) error {
	dir, err := d.scratchDir("mtd")
	if err != nil {
		return err
	}
	defer d.cleanup(dir)

	in, err := stageInput(req.In, dir)
	if err != nil {
		return err
	}
	xc := filepath.Join(dir, "xcontrol")
	if err := os.WriteFile(xc, []byte(req.XControl.Render()), 0o644); err != nil {
		return err
	}

	args := []string{in, "--md", "--input", xc}
	args = append(args, d.ExtraArgs...)
	if err := d.run(ctx, "metadyn", d.Bin, dir, args); err != nil {
		if req.FailOut != "" {
			copyFile(filepath.Join(dir, "xtb.trj"), req.FailOut)
		}
		return err
	}
	if err := copyFile(filepath.Join(dir, "xtb.trj"), req.Out); err != nil {
		return &RunError{Op: "metadyn", Args: args, Err: fmt.Errorf("no sampled trajectory: %w", err)}
	}
	return nil
}

// Cregen implements Engine.
func (d *Driver) Cregen(ctx context.Context, req CregenRequest) error {
	dir, err := d.scratchDir("cregen")
	if err != nil {
		return err
	}
	defer d.cleanup(dir)

	ref, err := stageInput(req.Reference, dir)
	if err != nil {
		return err
	}
	cand, err := stageInput(req.Candidates, dir)
	if err != nil {
		return err
	}

	args := []string{
		ref, "--cregen", cand,
		"--ewin", strconv.FormatFloat(req.EWin, 'f', -1, 64),
		"--rthr", strconv.FormatFloat(req.RThr, 'f', -1, 64),
		"--ethr", strconv.FormatFloat(req.EThr, 'f', -1, 64),
		"--bthr", strconv.FormatFloat(req.BThr, 'f', -1, 64),
		"--enso",
	}
	if err := d.run(ctx, "cregen", d.CrestBin, dir, args); err != nil {
		return err
	}
	if err := copyFile(filepath.Join(dir, "crest_ensemble.xyz"), req.Out); err != nil {
		return &RunError{Op: "cregen", Args: args, Err: fmt.Errorf("no pruned ensemble: %w", err)}
	}
	return nil
}

// stageInput copies an input file into the scratch directory so the engine
// never touches the caller's copy, and returns the absolute staged path.
func stageInput(path, dir string) (string, error) {
	staged := filepath.Join(dir, filepath.Base(path))
	if err := copyFile(path, staged); err != nil {
		return "", fmt.Errorf("xtb: stage input: %w", err)
	}
	return staged, nil
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
