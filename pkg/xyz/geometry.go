package xyz

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Atom is one parsed atom line: element symbol and Cartesian position in
// Angstrom.
type Atom struct {
	Symbol  string
	X, Y, Z float64
}

// Atoms parses the structure's atom lines.
func (s Structure) Atoms() ([]Atom, error) {
	lines := strings.Split(strings.TrimRight(s.Body, "\n"), "\n")
	if len(lines) != s.Natoms {
		return nil, fmt.Errorf("xyz: %d atom lines for %d atoms", len(lines), s.Natoms)
	}
	atoms := make([]Atom, len(lines))
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("xyz: bad atom line %q", line)
		}
		var coords [3]float64
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("xyz: bad coordinate in %q: %w", line, err)
			}
			coords[j] = v
		}
		atoms[i] = Atom{Symbol: fields[0], X: coords[0], Y: coords[1], Z: coords[2]}
	}
	return atoms, nil
}

// BondLength returns the distance between two 1-indexed atoms.
func (s Structure) BondLength(a, b int) (float64, error) {
	atoms, err := s.Atoms()
	if err != nil {
		return 0, err
	}
	if a < 1 || a > len(atoms) || b < 1 || b > len(atoms) {
		return 0, fmt.Errorf("xyz: atoms %d,%d out of range 1..%d", a, b, len(atoms))
	}
	pa, pb := atoms[a-1], atoms[b-1]
	dx, dy, dz := pa.X-pb.X, pa.Y-pb.Y, pa.Z-pb.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz), nil
}
