package xtb

import (
	"fmt"
	"strings"
)

// Constraint is the body of one $constrain group, line by line. A nil
// Constraint means unconstrained (free) relaxation.
type Constraint []string

// Stretch builds a distance restraint between two 1-indexed atoms.
func Stretch(a, b int, distance, force float64) Constraint {
	return Constraint{
		fmt.Sprintf("force constant = %f", force),
		fmt.Sprintf("distance: %d, %d, %f", a, b, distance),
	}
}

// StretchSequence discretizes a bond stretch into n points between factors
// low and high of the equilibrium length. The result is the ordered
// constraint sequence shared by every pipeline stage.
func StretchSequence(a, b int, length, low, high float64, n int, force float64) []Constraint {
	cons := make([]Constraint, n)
	for i := range cons {
		factor := low
		if n > 1 {
			factor = low + (high-low)*float64(i)/float64(n-1)
		}
		cons[i] = Stretch(a, b, factor*length, force)
	}
	return cons
}

// XControl describes an xcontrol input file. Empty groups are omitted.
type XControl struct {
	Wall     []string
	Metadyn  []string
	MD       []string
	CMA      bool
	Constrain Constraint
}

// Render produces the xcontrol file contents.
func (x XControl) Render() string {
	var b strings.Builder
	group := func(name string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString("$" + name + "\n")
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}
	group("wall", x.Wall)
	group("metadyn", x.Metadyn)
	group("md", x.MD)
	if x.CMA {
		b.WriteString("$cma\n")
	}
	group("constrain", x.Constrain)
	b.WriteString("$end\n")
	return b.String()
}
