package chain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ElioChen/iacta/pkg/xyz"
)

// DumpOptions selects which artifacts Dump writes.
type DumpOptions struct {
	// Concat writes every converged structure into a single opt.xyz instead
	// of one opt%04d.xyz file per step.
	Concat bool
	// Extra additionally writes indices, the full energy array E, and the
	// complete visited trajectory log.xyz.
	Extra bool
}

// Dump writes a chain result to dir: the converged structures, their
// energies (Eopt), and optionally the full trajectory with its index and
// energy arrays.
func Dump(dir string, res Result, opts DumpOptions) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	converged := make([]xyz.Structure, len(res.OptIndices))
	for i, oi := range res.OptIndices {
		converged[i] = res.Structures[oi]
	}

	if opts.Concat {
		if err := xyz.WriteTrajectory(filepath.Join(dir, "opt.xyz"), converged); err != nil {
			return err
		}
	} else {
		for i, s := range converged {
			path := filepath.Join(dir, fmt.Sprintf("opt%04d.xyz", i))
			if err := xyz.WriteStructure(path, s); err != nil {
				return err
			}
		}
	}

	if err := writeFloats(filepath.Join(dir, "Eopt"), xyz.Energies(converged)); err != nil {
		return err
	}

	if opts.Extra {
		if err := writeInts(filepath.Join(dir, "indices"), res.OptIndices); err != nil {
			return err
		}
		if err := writeFloats(filepath.Join(dir, "E"), res.Energies); err != nil {
			return err
		}
		if err := xyz.WriteTrajectory(filepath.Join(dir, "log.xyz"), res.Structures); err != nil {
			return err
		}
	}
	return nil
}

func writeFloats(path string, vals []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, v := range vals {
		if _, err := fmt.Fprintf(f, "%15.8f\n", v); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

func writeInts(path string, vals []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, v := range vals {
		if _, err := fmt.Fprintf(f, "%d\n", v); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
