package react

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ElioChen/iacta/pkg/xyz"
)

// IdentityOracle decides molecular identity. It is a black box to the
// pipeline: two structures are the same molecule exactly when their
// identity strings are equal.
type IdentityOracle interface {
	Identify(ctx context.Context, s xyz.Structure) (string, error)
}

// SelectLanes keeps the lanes whose initial structure is still the same
// molecule as the reactant, thinned to every third match so neighbouring
// stretch points are not all sampled. An empty result is fatal: the
// optimization probably reacted already and the search has no defined
// starting point.
func (p *Pipeline) SelectLanes(ctx context.Context, oracle IdentityOracle, reactant xyz.Structure, lanes []int) ([]int, error) {
	ref, err := oracle.Identify(ctx, reactant)
	if err != nil {
		return nil, fmt.Errorf("react: identify reactant: %w", err)
	}
	p.Logger.Info("reactant identity", "id", ref)

	var matched []int
	for _, lane := range lanes {
		s, err := xyz.ReadStructure(p.initFile(lane), 0)
		if err != nil {
			return nil, err
		}
		id, err := oracle.Identify(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("react: identify lane %d: %w", lane, err)
		}
		if id == ref {
			matched = append(matched, lane)
		}
	}

	var selected []int
	for i := 0; i < len(matched); i += 3 {
		selected = append(selected, matched[i])
	}
	if len(selected) == 0 {
		return nil, ErrReactantNotFound
	}
	return selected, nil
}

// CommandOracle shells out to an external identity program (typically a
// SMILES converter). The structure is written to stdin as one XYZ record
// and the first stdout line is the identity.
type CommandOracle struct {
	Argv []string
}

func (o CommandOracle) Identify(ctx context.Context, s xyz.Structure) (string, error) {
	if len(o.Argv) == 0 {
		return "", fmt.Errorf("react: no identity command configured")
	}
	cmd := exec.CommandContext(ctx, o.Argv[0], o.Argv[1:]...)
	cmd.Stdin = strings.NewReader(s.String())
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("react: identity command: %w", err)
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}
