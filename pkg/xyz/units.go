package xyz

// Energy unit conversions. All pipeline energies are carried in Hartree and
// only converted for display.
const (
	HartreeEv = 27.2113860217
	EvKcalMol = 23.061
)

// HartreeToKcalMol converts an energy difference from Hartree to kcal/mol.
func HartreeToKcalMol(e float64) float64 {
	return e * HartreeEv * EvKcalMol
}
