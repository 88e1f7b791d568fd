// Package cellfile parses a prior unit cell from either a CrystFEL v1.0
// cell file block or a single PDB CRYST1 record (spec.md 6).
package cellfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
)

/*****************************************************************************************************************/

const angstrom = 1e-10

/*****************************************************************************************************************/

// Parse reads a cell file, detecting whether it is a CrystFEL v1.0 block or
// a PDB CRYST1 line from its content.
func Parse(r io.Reader) (*cell.UnitCell, error) {
	sc := bufio.NewScanner(r)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "CRYST1") {
			return parseCRYST1(trimmed)
		}
	}

	for _, line := range lines {
		if strings.Contains(line, "CrystFEL unit cell file") {
			return parseCrystFELBlock(lines)
		}
	}

	return nil, fmt.Errorf("cellfile: unrecognised cell file format")
}

/*****************************************************************************************************************/

// parseCRYST1 parses a fixed-column PDB CRYST1 record:
//
//	CRYST1   78.900   80.100   36.000  90.00  90.00  90.00 P 1
//	         a        b        c       alpha  beta   gamma  space group  Z
func parseCRYST1(line string) (*cell.UnitCell, error) {
	if len(line) < 54 {
		return nil, fmt.Errorf("cellfile: CRYST1 record too short: %q", line)
	}
	field := func(from, to int) (float64, error) {
		if to > len(line) {
			to = len(line)
		}
		return strconv.ParseFloat(strings.TrimSpace(line[from:to]), 64)
	}

	a, err := field(6, 15)
	if err != nil {
		return nil, fmt.Errorf("cellfile: bad a in CRYST1: %w", err)
	}
	b, err := field(15, 24)
	if err != nil {
		return nil, fmt.Errorf("cellfile: bad b in CRYST1: %w", err)
	}
	c, err := field(24, 33)
	if err != nil {
		return nil, fmt.Errorf("cellfile: bad c in CRYST1: %w", err)
	}
	alpha, err := field(33, 40)
	if err != nil {
		return nil, fmt.Errorf("cellfile: bad alpha in CRYST1: %w", err)
	}
	beta, err := field(40, 47)
	if err != nil {
		return nil, fmt.Errorf("cellfile: bad beta in CRYST1: %w", err)
	}
	gamma, err := field(47, 54)
	if err != nil {
		return nil, fmt.Errorf("cellfile: bad gamma in CRYST1: %w", err)
	}

	uc, err := cell.NewFromParameters(a*angstrom, b*angstrom, c*angstrom,
		alpha*math.Pi/180, beta*math.Pi/180, gamma*math.Pi/180)
	if err != nil {
		return nil, err
	}

	spaceGroup := ""
	if len(line) > 55 {
		spaceGroup = strings.TrimSpace(line[55:min(66, len(line))])
	}
	if len(spaceGroup) > 0 {
		uc.SetCentering(cell.Centering(spaceGroup[0]))
	}
	return uc, nil
}

/*****************************************************************************************************************/

// parseCrystFELBlock parses the key = value lines of a CrystFEL v1.0 cell
// file: lattice_type, centering, unique_axis, a/b/c (with an explicit unit
// suffix, normally "A"), al/be/ga (with an explicit "deg" suffix).
func parseCrystFELBlock(lines []string) (*cell.UnitCell, error) {
	values := map[string]string{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "CrystFEL") {
			continue
		}
		eq := strings.IndexByte(trimmed, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:eq])
		value := strings.TrimSpace(trimmed[eq+1:])
		values[key] = value
	}

	lengthOf := func(key string) (float64, error) {
		raw, ok := values[key]
		if !ok {
			return 0, fmt.Errorf("cellfile: missing required key %q", key)
		}
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return 0, fmt.Errorf("cellfile: empty value for key %q", key)
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("cellfile: bad value for key %q: %w", key, err)
		}
		unit := "a"
		if len(fields) > 1 {
			unit = strings.ToLower(fields[1])
		}
		switch unit {
		case "a", "angstrom", "angstroms":
			return v * angstrom, nil
		case "nm":
			return v * 1e-9, nil
		case "m":
			return v, nil
		default:
			return 0, fmt.Errorf("cellfile: unrecognised length unit %q for key %q", fields[1], key)
		}
	}

	angleOf := func(key string) (float64, error) {
		raw, ok := values[key]
		if !ok {
			return 0, fmt.Errorf("cellfile: missing required key %q", key)
		}
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return 0, fmt.Errorf("cellfile: empty value for key %q", key)
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("cellfile: bad value for key %q: %w", key, err)
		}
		return v * math.Pi / 180, nil
	}

	a, err := lengthOf("a")
	if err != nil {
		return nil, err
	}
	b, err := lengthOf("b")
	if err != nil {
		return nil, err
	}
	c, err := lengthOf("c")
	if err != nil {
		return nil, err
	}
	al, err := angleOf("al")
	if err != nil {
		return nil, err
	}
	be, err := angleOf("be")
	if err != nil {
		return nil, err
	}
	ga, err := angleOf("ga")
	if err != nil {
		return nil, err
	}

	uc, err := cell.NewFromParameters(a, b, c, al, be, ga)
	if err != nil {
		return nil, err
	}

	if lt, ok := values["lattice_type"]; ok {
		uc.SetLatticeType(parseLatticeType(lt))
	}
	if cen, ok := values["centering"]; ok && len(cen) > 0 {
		uc.SetCentering(cell.Centering(cen[0]))
	}
	if ax, ok := values["unique_axis"]; ok && len(ax) > 0 {
		uc.SetUniqueAxis(cell.UniqueAxis(ax[0]))
	}

	return uc, nil
}

/*****************************************************************************************************************/

func parseLatticeType(s string) cell.LatticeType {
	switch strings.ToLower(s) {
	case "monoclinic":
		return cell.Monoclinic
	case "orthorhombic":
		return cell.Orthorhombic
	case "tetragonal":
		return cell.Tetragonal
	case "rhombohedral":
		return cell.Rhombohedral
	case "hexagonal":
		return cell.Hexagonal
	case "cubic":
		return cell.Cubic
	default:
		return cell.Triclinic
	}
}
