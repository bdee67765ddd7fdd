package xyz

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrajectory = `3
 energy: -5.07054707 gnorm: 0.00022 xtb: 6.4.1
O    0.00000000   0.00000000   0.11779700
H    0.00000000   0.75545300  -0.47118800
H    0.00000000  -0.75545300  -0.47118800
3
-5.06012000
O    0.00000000   0.00000000   0.12000000
H    0.00000000   0.76000000  -0.47000000
H    0.00000000  -0.76000000  -0.47000000
`

func TestReadTrajectory(t *testing.T) {
	structures, err := ReadTrajectoryFrom(strings.NewReader(sampleTrajectory))
	require.NoError(t, err)
	require.Len(t, structures, 2)

	assert.Equal(t, 3, structures[0].Natoms)
	assert.InDelta(t, -5.07054707, structures[0].Energy, 1e-9)
	assert.InDelta(t, -5.06012, structures[1].Energy, 1e-9)
	assert.Contains(t, structures[0].Body, "O ")
}

func TestReadTrajectoryTolerantComment(t *testing.T) {
	// The energy is whatever float-looking token comes first, no matter
	// how the comment line is formatted.
	cases := []struct {
		comment string
		energy  float64
	}{
		{" -12.5 ", -12.5},
		{"Etot= -12.5 gnorm 0.1", -12.5},
		{"step 0.25 done", 0.25},
	}
	for _, tc := range cases {
		in := "1\n" + tc.comment + "\nH 0.0 0.0 0.0\n"
		structures, err := ReadTrajectoryFrom(strings.NewReader(in))
		require.NoError(t, err, tc.comment)
		require.Len(t, structures, 1)
		assert.InDelta(t, tc.energy, structures[0].Energy, 1e-12, tc.comment)
	}
}

func TestReadTrajectoryErrors(t *testing.T) {
	_, err := ReadTrajectoryFrom(strings.NewReader("not-a-count\nfoo\n"))
	assert.ErrorContains(t, err, "bad atom count")

	_, err = ReadTrajectoryFrom(strings.NewReader("1\nno energy here\nH 0 0 0\n"))
	assert.ErrorContains(t, err, "no energy")

	_, err = ReadTrajectoryFrom(strings.NewReader("2\n-1.5\nH 0 0 0\n"))
	assert.ErrorContains(t, err, "truncated")
}

func TestRoundTrip(t *testing.T) {
	structures, err := ReadTrajectoryFrom(strings.NewReader(sampleTrajectory))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.xyz")
	require.NoError(t, WriteTrajectory(path, structures))

	again, err := ReadTrajectory(path)
	require.NoError(t, err)
	assert.Equal(t, structures, again)
}

func TestReadStructure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.xyz")
	structures, err := ReadTrajectoryFrom(strings.NewReader(sampleTrajectory))
	require.NoError(t, err)
	require.NoError(t, WriteTrajectory(path, structures))

	s, err := ReadStructure(path, 1)
	require.NoError(t, err)
	assert.InDelta(t, -5.06012, s.Energy, 1e-9)

	_, err = ReadStructure(path, 5)
	assert.ErrorContains(t, err, "no record 5")
}

func TestAtomsAndBondLength(t *testing.T) {
	structures, err := ReadTrajectoryFrom(strings.NewReader(sampleTrajectory))
	require.NoError(t, err)

	atoms, err := structures[0].Atoms()
	require.NoError(t, err)
	require.Len(t, atoms, 3)
	assert.Equal(t, "O", atoms[0].Symbol)
	assert.Equal(t, "H", atoms[1].Symbol)

	d, err := structures[0].BondLength(1, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.9584, d, 1e-3)

	_, err = structures[0].BondLength(0, 2)
	assert.ErrorContains(t, err, "out of range")
}

func TestEnergiesAndUnits(t *testing.T) {
	structures, err := ReadTrajectoryFrom(strings.NewReader(sampleTrajectory))
	require.NoError(t, err)

	es := Energies(structures)
	require.Len(t, es, 2)
	assert.InDelta(t, -5.07054707, es[0], 1e-9)

	assert.InDelta(t, 627.5, HartreeToKcalMol(1.0), 0.3)
}
