// Package xyz reads and writes XYZ trajectory files.
//
// A trajectory file is a concatenation of records. Each record is an atom
// count line, a comment line, and one line per atom. The record energy (in
// Hartree) is the first float-looking token on the comment line; anything
// else on that line is preserved but not interpreted.
package xyz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Structure is an immutable snapshot of a molecular geometry together with
// its energy. The atom lines are kept verbatim so a structure written back
// out is byte-identical to the record it was read from.
type Structure struct {
	Natoms  int
	Energy  float64 // Hartree
	Comment string
	Body    string // atom lines, newline terminated
}

// String renders the structure as one XYZ record.
func (s Structure) String() string {
	return fmt.Sprintf("%d\n%s\n%s", s.Natoms, s.Comment, s.Body)
}

// WriteTo writes the structure as one XYZ record.
func (s Structure) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

var energyRe = regexp.MustCompile(`-?[0-9]*\.[0-9]+`)

// ReadTrajectoryFrom parses all records from r.
func ReadTrajectoryFrom(r io.Reader) ([]Structure, error) {
	br := bufio.NewReader(r)
	var structures []Structure
	for {
		countLine, err := br.ReadString('\n')
		if countLine == "" && err == io.EOF {
			return structures, nil
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		trimmed := strings.TrimSpace(countLine)
		if trimmed == "" && err == io.EOF {
			return structures, nil
		}
		natoms, cerr := strconv.Atoi(trimmed)
		if cerr != nil {
			return nil, fmt.Errorf("xyz: record %d: bad atom count %q", len(structures), trimmed)
		}

		comment, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		comment = strings.TrimRight(comment, "\n")
		tok := energyRe.FindString(comment)
		if tok == "" {
			return nil, fmt.Errorf("xyz: record %d: no energy on comment line %q", len(structures), comment)
		}
		energy, cerr := strconv.ParseFloat(tok, 64)
		if cerr != nil {
			return nil, fmt.Errorf("xyz: record %d: bad energy %q: %w", len(structures), tok, cerr)
		}

		var body strings.Builder
		for i := 0; i < natoms; i++ {
			line, err := br.ReadString('\n')
			if line == "" && err != nil {
				return nil, fmt.Errorf("xyz: record %d: truncated after %d of %d atoms", len(structures), i, natoms)
			}
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			body.WriteString(line)
		}

		structures = append(structures, Structure{
			Natoms:  natoms,
			Energy:  energy,
			Comment: comment,
			Body:    body.String(),
		})
	}
}

// ReadTrajectory parses all records from the file at path.
func ReadTrajectory(path string) ([]Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrajectoryFrom(f)
}

// ReadStructure returns the index-th record of the file at path.
func ReadStructure(path string, index int) (Structure, error) {
	structures, err := ReadTrajectory(path)
	if err != nil {
		return Structure{}, err
	}
	if index < 0 || index >= len(structures) {
		return Structure{}, fmt.Errorf("xyz: %s: no record %d (have %d)", path, index, len(structures))
	}
	return structures[index], nil
}

// WriteTrajectory writes structures as a concatenated XYZ file at path.
func WriteTrajectory(path string, structures []Structure) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, s := range structures {
		if _, err := s.WriteTo(f); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// WriteStructure writes a single record at path.
func WriteStructure(path string, s Structure) error {
	return WriteTrajectory(path, []Structure{s})
}

// Energies returns the energies of structures, in order.
func Energies(structures []Structure) []float64 {
	out := make([]float64, len(structures))
	for i, s := range structures {
		out[i] = s.Energy
	}
	return out
}
