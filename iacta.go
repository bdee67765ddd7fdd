// Package iacta automates the discovery of chemical reaction pathways.
//
// Given a starting molecular geometry and a bond to stretch, it drives an
// external quantum-chemistry engine through a four-stage pipeline (initial
// structure generation, metadynamics sampling, conformer refinement, and
// forward/backward reaction construction) to produce plausible
// reactant-to-product trajectories with energies.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	driver := iacta.NewDriver(scratch)
//	constraints := iacta.StretchSequence(1, 2, length, 1.0, 3.0, 80, 0.5)
//	p := iacta.NewPipeline(driver, workdir, constraints, iacta.DefaultParams())
//	p.Threads = 8
//
//	lanes := p.Params.Lanes(80)
//	p.GenerateInitialStructures(ctx, seed, lanes)
//	p.MetadynamicsSearch(ctx, lanes)
//	p.MetadynamicsRefine(ctx, seed, lanes)
//	p.Reactions(ctx, lanes)
package iacta

import (
	"github.com/ElioChen/iacta/pkg/chain"
	"github.com/ElioChen/iacta/pkg/config"
	"github.com/ElioChen/iacta/pkg/manifest"
	"github.com/ElioChen/iacta/pkg/react"
	"github.com/ElioChen/iacta/pkg/worklist"
	"github.com/ElioChen/iacta/pkg/xtb"
	"github.com/ElioChen/iacta/pkg/xyz"
)

type (
	// Structure is an immutable molecular geometry snapshot with energy.
	Structure = xyz.Structure

	// Atom is one parsed atom line of a Structure.
	Atom = xyz.Atom

	// Constraint is one geometric restraint group; nil means unconstrained.
	Constraint = xtb.Constraint

	// XControl describes an engine input file.
	XControl = xtb.XControl

	// Engine is the external computation interface.
	Engine = xtb.Engine

	// Driver runs the engine as subprocesses.
	Driver = xtb.Driver

	// RunError reports a failed engine invocation.
	RunError = xtb.RunError

	// ChainResult is everything a chained optimization visited.
	ChainResult = chain.Result

	// WorklistEntry is one unit of reaction-construction work.
	WorklistEntry = worklist.Entry

	// Pipeline runs the four pipeline stages.
	Pipeline = react.Pipeline

	// IdentityOracle is the black-box molecule equality used for lane
	// selection.
	IdentityOracle = react.IdentityOracle

	// Params are the numerical parameters of a search.
	Params = config.Params

	// RunConfig is the immutable description of one run.
	RunConfig = config.RunConfig

	// RestartLevel selects which stages a restarted run skips.
	RestartLevel = config.RestartLevel

	// Recorder journals pipeline progress to the run manifest.
	Recorder = manifest.Recorder
)

// Re-exported constructors and helpers.
var (
	NewDriver       = xtb.NewDriver
	NewPipeline     = react.NewPipeline
	Stretch         = xtb.Stretch
	StretchSequence = xtb.StretchSequence
	DefaultParams   = config.DefaultParams
	LoadParams      = config.LoadParams
	ReadTrajectory  = xyz.ReadTrajectory
	WriteTrajectory = xyz.WriteTrajectory
	OpenManifest    = manifest.Open
)
