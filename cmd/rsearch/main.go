// Command rsearch drives an automated reaction search: it stretches one
// bond of a seed geometry across a discretized reaction coordinate and
// pushes the resulting structures through metadynamics sampling, conformer
// refinement, and forward/backward reaction construction.
//
// Usage:
//
//	rsearch [flags] geometry.xyz atomA atomB
//
// atomA and atomB are 1-indexed into geometry.xyz and define the bond to
// stretch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ElioChen/iacta/pkg/config"
	"github.com/ElioChen/iacta/pkg/manifest"
	"github.com/ElioChen/iacta/pkg/react"
	"github.com/ElioChen/iacta/pkg/xtb"
	"github.com/ElioChen/iacta/pkg/xyz"
)

func main() {
	var (
		outDir    = flag.String("o", "output", "output directory")
		overwrite = flag.Bool("w", false, "overwrite an existing output directory")
		threads   = flag.Int("T", 1, "number of worker threads")
		restart   = flag.Int("restart", 0, "restart level 0-4: 1 skip initial optimization, 2 skip initial stretching, 3 skip metadynamics, 4 skip refinement")
		paramFile = flag.String("params", "", "YAML file of numerical parameters")
		sLow      = flag.Float64("smin", 1.0, "lower bond stretch factor")
		sHigh     = flag.Float64("smax", 3.0, "upper bond stretch factor")
		sN        = flag.Int("sn", 80, "number of bond stretch points")
		force     = flag.Float64("force", 0.5, "force constant of the stretch restraint")
		gfn       = flag.String("gfn", "", "gfn version")
		etemp     = flag.String("etemp", "", "electronic temperature")
		chrg      = flag.String("chrg", "", "molecular charge")
		uhf       = flag.String("uhf", "", "spin state")
		solvent   = flag.String("solvent", "", "GBSA solvent")
		timeout   = flag.Duration("timeout", 0, "per-engine-call timeout (0 = none)")
		mtdi      = flag.String("mtdi", "", "comma-separated lane indices (overrides identity-based selection)")
		smiles    = flag.String("smiles", "", "identity command for reactant matching, e.g. \"obabel -ixyz -osmi\"")
		xtbBin    = flag.String("xtb", "xtb", "xtb executable")
		crestBin  = flag.String("crest", "crest", "crest executable")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if flag.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "usage: rsearch [flags] geometry.xyz atomA atomB")
		os.Exit(2)
	}
	a, errA := strconv.Atoi(flag.Arg(1))
	b, errB := strconv.Atoi(flag.Arg(2))
	if errA != nil || errB != nil {
		fatal(logger, "atom indices must be integers", nil)
	}

	params := config.DefaultParams()
	if *paramFile != "" {
		var err error
		params, err = config.LoadParams(*paramFile)
		if err != nil {
			fatal(logger, "loading parameters", err)
		}
	}
	if *mtdi != "" {
		lanes, err := parseInts(*mtdi)
		if err != nil {
			fatal(logger, "parsing -mtdi", err)
		}
		params.MTDIndices = lanes
	}

	cfg := config.RunConfig{
		Geometry:      flag.Arg(0),
		Atoms:         [2]int{a, b},
		OutDir:        *outDir,
		Overwrite:     *overwrite,
		Threads:       *threads,
		Restart:       config.RestartLevel(*restart),
		StretchLow:    *sLow,
		StretchHigh:   *sHigh,
		StretchPoints: *sN,
		Force:         *force,
		GFN:           *gfn,
		ETemp:         *etemp,
		Charge:        *chrg,
		UHF:           *uhf,
		Solvent:       *solvent,
		Timeout:       *timeout,
		Scratch:       scratchDir(logger),
		Params:        params,
	}
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}
	if err := config.PrepareOutputDir(cfg.OutDir, cfg.Overwrite, cfg.Restart); err != nil {
		fatal(logger, "preparing output directory", err)
	}

	if err := run(context.Background(), logger, cfg, *xtbBin, *crestBin, *smiles); err != nil {
		fatal(logger, "reaction search failed", err)
	}
	logger.Info("no more work to do")
}

func run(ctx context.Context, logger *slog.Logger, cfg config.RunConfig, xtbBin, crestBin, smiles string) error {
	recorder, err := manifest.Open(filepath.Join(cfg.OutDir, "run.db"))
	if err != nil {
		logger.Warn("run manifest unavailable", "error", err)
		recorder = nil
	}

	driver := xtb.NewDriver(cfg.Scratch)
	driver.Bin = xtbBin
	driver.CrestBin = crestBin
	driver.ExtraArgs = cfg.EngineArgs()
	driver.Timeout = cfg.Timeout
	driver.Logger = logger

	// Seed geometry and its optimization are the run's reference state.
	init0 := filepath.Join(cfg.OutDir, "initial_geometry.xyz")
	init1 := filepath.Join(cfg.OutDir, "initial_optimized.xyz")
	if cfg.Restart.DoOpt() {
		if err := copyFile(cfg.Geometry, init0); err != nil {
			return err
		}
		logger.Info("optimizing initial geometry")
		if err := driver.Optimize(ctx, xtb.OptRequest{
			In:       init0,
			Out:      init1,
			Level:    cfg.Params.OptLevel,
			XControl: xtb.XControl{Wall: cfg.Params.Wall},
		}); err != nil {
			return err
		}
	}

	seed, err := xyz.ReadStructure(init1, 0)
	if err != nil {
		return err
	}
	logger.Info("reference energy", "e0_hartree", seed.Energy)

	length, err := seed.BondLength(cfg.Atoms[0], cfg.Atoms[1])
	if err != nil {
		return err
	}
	logger.Info("stretching bond",
		"atoms", fmt.Sprintf("%d-%d", cfg.Atoms[0], cfg.Atoms[1]),
		"equilibrium_angstrom", length,
		"range", fmt.Sprintf("%.2fx-%.2fx", cfg.StretchLow, cfg.StretchHigh),
		"points", cfg.StretchPoints,
		"force_constant", cfg.Force)

	constraints := xtb.StretchSequence(
		cfg.Atoms[0], cfg.Atoms[1], length,
		cfg.StretchLow, cfg.StretchHigh, cfg.StretchPoints, cfg.Force)

	p := react.NewPipeline(driver, cfg.OutDir, constraints, cfg.Params)
	p.Threads = cfg.Threads
	p.Logger = logger
	p.Recorder = recorder
	p.Scratch = cfg.Scratch

	lanes := cfg.Params.Lanes(cfg.StretchPoints)
	if len(lanes) == 0 {
		return errors.New("no metadynamics lanes configured")
	}

	if cfg.Restart.DoInit() {
		if err := p.GenerateInitialStructures(ctx, init1, lanes); err != nil {
			return err
		}
	}

	// With no explicit lane list, keep only the lanes whose structure is
	// still the reactant according to the identity oracle.
	if len(cfg.Params.MTDIndices) == 0 && smiles != "" {
		lanes, err = p.SelectLanes(ctx, react.CommandOracle{Argv: strings.Fields(smiles)}, seed, lanes)
		if err != nil {
			return err
		}
		logger.Info("lanes selected by reactant identity", "lanes", lanes)
	}

	if cfg.Restart.DoMetadyn() {
		if err := p.MetadynamicsSearch(ctx, lanes); err != nil {
			return err
		}
	}
	if cfg.Restart.DoRefine() {
		if err := p.MetadynamicsRefine(ctx, init1, lanes); err != nil {
			return err
		}
	}
	return p.Reactions(ctx, lanes)
}

func scratchDir(logger *slog.Logger) string {
	if s := os.Getenv("LOCALSCRATCH"); s != "" {
		return s
	}
	logger.Warn("$LOCALSCRATCH not set, scratching in working directory")
	return "."
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
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

func fatal(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
