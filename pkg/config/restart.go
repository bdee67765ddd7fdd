package config

import (
	"fmt"
	"os"
)

// RestartLevel selects which pipeline stages are skipped on restart, each
// skipped stage reusing its existing output directory verbatim as the
// checkpoint. Reaction construction always runs.
type RestartLevel int

const (
	RestartNone        RestartLevel = iota // full run
	RestartSkipOpt                         // skip initial geometry optimization
	RestartSkipInit                        // also skip initial structure generation
	RestartSkipMetadyn                     // also skip metadynamics search
	RestartSkipRefine                      // also skip refinement, go straight to reactions
)

// Valid reports whether the level is one of the defined values.
func (r RestartLevel) Valid() bool {
	return r >= RestartNone && r <= RestartSkipRefine
}

// DoOpt reports whether the initial geometry optimization runs.
func (r RestartLevel) DoOpt() bool { return r < RestartSkipOpt }

// DoInit reports whether initial structure generation runs.
func (r RestartLevel) DoInit() bool { return r < RestartSkipInit }

// DoMetadyn reports whether the metadynamics search runs.
func (r RestartLevel) DoMetadyn() bool { return r < RestartSkipMetadyn }

// DoRefine reports whether metadynamics refinement runs.
func (r RestartLevel) DoRefine() bool { return r < RestartSkipRefine }

// PrepareOutputDir creates dir, or decides what an existing dir means: a
// restart reuses it, overwrite recreates it, and otherwise it is fatal so a
// prior run is never silently clobbered.
func PrepareOutputDir(dir string, overwrite bool, restart RestartLevel) error {
	_, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0o755)
	case err != nil:
		return err
	case restart > RestartNone:
		return nil
	case overwrite:
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		return os.MkdirAll(dir, 0o755)
	default:
		return fmt.Errorf("%w: %s (pass -w to overwrite or -restart to resume)", ErrOutputExists, dir)
	}
}
