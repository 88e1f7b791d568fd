// Package geomfile parses the INI-style detector geometry file: one section
// per panel (origin, fast/slow axis direction vectors, pixel pitch, camera
// length) plus optional bad-region sections, read once per worker at
// start-up (spec.md 6).
package geomfile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
)

/*****************************************************************************************************************/

type rawSection map[string]string

/*****************************************************************************************************************/

// axisTerm matches one signed coefficient-axis term, e.g. "-0.002x", "y",
// "+0.999z".
var axisTerm = regexp.MustCompile(`([+-]?\s*[0-9]*\.?[0-9]*)\s*([xyz])`)

/*****************************************************************************************************************/

// parseAxisExpr parses a CrystFEL-style direction expression like "x",
// "-y", or "0.002x +0.999y" into a unit-scale direction vector. Only the
// plain Cartesian-term subset is supported (no "ss"/"fs"-relative
// expressions some geometry files use for detector-of-detectors panel
// groups); unsupported syntax is reported rather than silently
// misinterpreted.
func parseAxisExpr(s string) (r3.Vec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return r3.Vec{}, fmt.Errorf("geomfile: empty axis expression")
	}

	matches := axisTerm.FindAllStringSubmatch(s, -1)
	if matches == nil {
		return r3.Vec{}, fmt.Errorf("geomfile: unrecognised axis expression %q", s)
	}

	var v r3.Vec
	for _, m := range matches {
		coeffStr := strings.ReplaceAll(m[1], " ", "")
		coeff := 1.0
		switch coeffStr {
		case "", "+":
			coeff = 1
		case "-":
			coeff = -1
		default:
			parsed, err := strconv.ParseFloat(coeffStr, 64)
			if err != nil {
				return r3.Vec{}, fmt.Errorf("geomfile: bad coefficient in %q: %w", s, err)
			}
			coeff = parsed
		}
		switch m[2] {
		case "x":
			v = r3.Vec{v.X() + coeff, v.Y(), v.Z()}
		case "y":
			v = r3.Vec{v.X(), v.Y() + coeff, v.Z()}
		case "z":
			v = r3.Vec{v.X(), v.Y(), v.Z() + coeff}
		}
	}
	return v, nil
}

/*****************************************************************************************************************/

// Parse reads a geometry file and builds the Detector it describes.
func Parse(r io.Reader) (*detector.Detector, error) {
	top := rawSection{}
	sections := map[string]rawSection{}
	var panelOrder []string
	var badOrder []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if semi := strings.IndexByte(value, ';'); semi >= 0 {
			value = strings.TrimSpace(value[:semi])
		}

		slash := strings.IndexByte(key, '/')
		if slash < 0 {
			top[key] = value
			continue
		}

		section, attr := key[:slash], key[slash+1:]
		sec, ok := sections[section]
		if !ok {
			sec = rawSection{}
			sections[section] = sec
			if isBadRegionSection(section) {
				badOrder = append(badOrder, section)
			} else {
				panelOrder = append(panelOrder, section)
			}
		}
		sec[attr] = value
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// Panel order is the order panel sections first appear in the file,
	// not alphabetical: "panel10" sorting before "panel2" would silently
	// renumber the Panel indices reflections/peaks reference elsewhere.
	panelOrder = dedupPreserveOrder(panelOrder)
	badOrder = dedupPreserveOrder(badOrder)

	det := &detector.Detector{}
	panelIndex := map[string]int{}
	for _, name := range panelOrder {
		p, err := buildPanel(name, sections[name])
		if err != nil {
			return nil, err
		}
		panelIndex[name] = len(det.Panels)
		det.Panels = append(det.Panels, p)
	}

	for _, name := range badOrder {
		if err := applyBadRegion(det, panelIndex, sections[name]); err != nil {
			return nil, err
		}
	}

	return det, nil
}

/*****************************************************************************************************************/

// isBadRegionSection identifies a bad-region section by the conventional
// "bad*" name CrystFEL geometry files use (e.g. "badregionA"), since a bad
// region's keys (min_fs/max_fs/min_ss/max_ss/panel) overlap with a panel
// section's own extent keys and can't be told apart by key name alone.
func isBadRegionSection(section string) bool {
	return strings.HasPrefix(strings.ToLower(section), "bad")
}

/*****************************************************************************************************************/

func dedupPreserveOrder(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

/*****************************************************************************************************************/

func buildPanel(name string, sec rawSection) (detector.Panel, error) {
	minFS, err := sec.int("min_fs")
	if err != nil {
		return detector.Panel{}, err
	}
	maxFS, err := sec.int("max_fs")
	if err != nil {
		return detector.Panel{}, err
	}
	minSS, err := sec.int("min_ss")
	if err != nil {
		return detector.Panel{}, err
	}
	maxSS, err := sec.int("max_ss")
	if err != nil {
		return detector.Panel{}, err
	}

	res, err := sec.float("res")
	if err != nil {
		return detector.Panel{}, err
	}
	pixelPitch := 1 / res

	clen, err := sec.floatOr("clen", 0)
	if err != nil {
		return detector.Panel{}, err
	}

	cornerX, err := sec.floatOr("corner_x", 0)
	if err != nil {
		return detector.Panel{}, err
	}
	cornerY, err := sec.floatOr("corner_y", 0)
	if err != nil {
		return detector.Panel{}, err
	}

	fsExpr, ok := sec["fs"]
	if !ok {
		fsExpr = "x"
	}
	ssExpr, ok := sec["ss"]
	if !ok {
		ssExpr = "y"
	}
	fsDir, err := parseAxisExpr(fsExpr)
	if err != nil {
		return detector.Panel{}, fmt.Errorf("geomfile: panel %s: %w", name, err)
	}
	ssDir, err := parseAxisExpr(ssExpr)
	if err != nil {
		return detector.Panel{}, fmt.Errorf("geomfile: panel %s: %w", name, err)
	}

	maxADU, err := sec.floatOr("max_adu", 0)
	if err != nil {
		return detector.Panel{}, err
	}

	width := maxFS - minFS + 1
	height := maxSS - minSS + 1

	return detector.Panel{
		Name:       name,
		Width:      width,
		Height:     height,
		PixelPitch: pixelPitch,
		Clen:       clen,
		Origin:     r3.Vec{cornerX * pixelPitch, cornerY * pixelPitch, clen},
		FS:         fsDir.Scale(pixelPitch),
		SS:         ssDir.Scale(pixelPitch),
		MaxADU:     maxADU,
	}, nil
}

/*****************************************************************************************************************/

func applyBadRegion(det *detector.Detector, panelIndex map[string]int, sec rawSection) error {
	panelName, ok := sec["panel"]
	if !ok {
		return nil
	}
	idx, ok := panelIndex[panelName]
	if !ok {
		return fmt.Errorf("geomfile: bad region references unknown panel %q", panelName)
	}
	p := &det.Panels[idx]

	minFS, err := sec.intOr("min_fs", 0)
	if err != nil {
		return err
	}
	maxFS, err := sec.intOr("max_fs", p.Width-1)
	if err != nil {
		return err
	}
	minSS, err := sec.intOr("min_ss", 0)
	if err != nil {
		return err
	}
	maxSS, err := sec.intOr("max_ss", p.Height-1)
	if err != nil {
		return err
	}

	if p.Bad == nil {
		p.Bad = make([][]bool, p.Height)
		for i := range p.Bad {
			p.Bad[i] = make([]bool, p.Width)
		}
	}
	for ss := minSS; ss <= maxSS && ss < p.Height; ss++ {
		if ss < 0 {
			continue
		}
		for fs := minFS; fs <= maxFS && fs < p.Width; fs++ {
			if fs < 0 {
				continue
			}
			p.Bad[ss][fs] = true
		}
	}
	return nil
}

/*****************************************************************************************************************/

func (s rawSection) float(key string) (float64, error) {
	v, ok := s[key]
	if !ok {
		return 0, fmt.Errorf("geomfile: missing required key %q", key)
	}
	return strconv.ParseFloat(v, 64)
}

func (s rawSection) floatOr(key string, def float64) (float64, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func (s rawSection) int(key string) (int, error) {
	v, ok := s[key]
	if !ok {
		return 0, fmt.Errorf("geomfile: missing required key %q", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	return int(f), err
}

func (s rawSection) intOr(key string, def int) (int, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	return int(f), err
}
