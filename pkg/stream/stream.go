// Package stream reads and writes the text, line-oriented chunk format
// processed images are recorded in: a version header, then one
// "----- Begin/End chunk -----" block per image containing its peak list
// and zero or more "Begin/End crystal" blocks (spec.md 6).
package stream

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/crystfel-go/crystfel-go/pkg/cell"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
	"github.com/crystfel-go/crystfel-go/pkg/reflection"
)

/*****************************************************************************************************************/

const (
	beginChunk   = "----- Begin chunk -----"
	endChunk     = "----- End chunk -----"
	beginCrystal = "--- Begin crystal"
	endCrystal   = "--- End crystal"
	peakListHdr  = "fs/px   ss/px (1/d)/nm^-1   Intensity  Panel"
	reflListHdr  = "h    k    l          I    sigma(I)       peak background  fs/px  ss/px panel"
	peakListEnd  = "End of peak list"
	reflListEnd  = "End of reflections"
)

/*****************************************************************************************************************/

// Header carries the run-level metadata recorded once at the top of a
// stream file.
type Header struct {
	CommandLine   string
	GeometryFile  string
	ReferenceCell *cell.UnitCell
}

/*****************************************************************************************************************/

// Writer serialises images to the stream text format.
type Writer struct {
	w   *bufio.Writer
	err error
}

/*****************************************************************************************************************/

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

/*****************************************************************************************************************/

// WriteHeader writes the version header. Call it exactly once, before any
// WriteImage call.
func (s *Writer) WriteHeader(h Header) error {
	if s.err != nil {
		return s.err
	}
	fmt.Fprintln(s.w, "CrystFEL stream format 2.3")
	fmt.Fprintf(s.w, "Command line: %s\n", h.CommandLine)
	fmt.Fprintf(s.w, "Geometry file: %s\n", h.GeometryFile)
	if h.ReferenceCell != nil {
		line, err := formatCellLine(h.ReferenceCell)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "Reference cell: %s\n", line)
	}
	return s.w.Flush()
}

/*****************************************************************************************************************/

// WriteImage appends one image's chunk: its peak list, then one crystal
// block per indexed crystal with its cell parameters and reflections.
func (s *Writer) WriteImage(img *detector.Image) error {
	if s.err != nil {
		return s.err
	}

	fmt.Fprintln(s.w, beginChunk)
	fmt.Fprintf(s.w, "Image serial number = %d\n", img.Serial)
	hit := 0
	if len(img.Crystals) > 0 {
		hit = 1
	}
	fmt.Fprintf(s.w, "hit = %d\n", hit)
	fmt.Fprintf(s.w, "indexed_by = %s\n", img.IndexedBy)

	fmt.Fprintln(s.w, peakListHdr)
	for _, p := range img.Peaks {
		fmt.Fprintf(s.w, "%7.2f %7.2f %13s %11.2f %6d\n", p.FS, p.SS, "-", p.Intensity, p.Panel)
	}
	fmt.Fprintln(s.w, peakListEnd)

	for _, c := range img.Crystals {
		if err := s.writeCrystal(c); err != nil {
			s.err = err
			return err
		}
	}

	fmt.Fprintln(s.w, endChunk)
	return s.w.Flush()
}

/*****************************************************************************************************************/

func (s *Writer) writeCrystal(c *detector.Crystal) error {
	fmt.Fprintln(s.w, beginCrystal)
	line, err := formatCellLine(c.Cell)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.w, "Cell parameters: %s\n", line)
	fmt.Fprintf(s.w, "profile_radius = %.6g nm^-1\n", c.ProfileRadius*1e-9)

	fmt.Fprintln(s.w, reflListHdr)
	c.Reflections.Each(func(r *reflection.Reflection) {
		fmt.Fprintf(s.w, "%4d %4d %4d %10.2f %11.2f %10.2f %10.2f %6.1f %6.1f %5d\n",
			r.Index.H, r.Index.K, r.Index.L,
			r.Intensity, r.Sigma, r.Peak, r.Background,
			r.FS, r.SS, r.Panel)
	})
	fmt.Fprintln(s.w, reflListEnd)
	fmt.Fprintln(s.w, endCrystal)
	return nil
}

/*****************************************************************************************************************/

// formatCellLine renders a cell as "a b c al be ga lattice_type centering
// unique_axis" (lengths in nm, angles in degrees), the same fields a
// CrystFEL v1.0 cell file's block stores (see pkg/cellfile).
func formatCellLine(c *cell.UnitCell) (string, error) {
	a, b, cc, alpha, beta, gamma, err := c.Parameters()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"%.6f %.6f %.6f nm, %.6f %.6f %.6f deg, lattice_type %s, centering %c, unique_axis %c",
		a*1e9, b*1e9, cc*1e9,
		alpha*180/math.Pi, beta*180/math.Pi, gamma*180/math.Pi,
		c.LatticeType(), c.Centering(), c.UniqueAxis(),
	), nil
}

/*****************************************************************************************************************/

// Reader parses a stream file back into images.
type Reader struct {
	sc *bufio.Scanner
}

/*****************************************************************************************************************/

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{sc: sc}
}

/*****************************************************************************************************************/

// ReadHeader consumes the leading version header lines, up to but not
// including the first chunk.
func (r *Reader) ReadHeader() (Header, error) {
	var h Header
	for r.sc.Scan() {
		line := r.sc.Text()
		switch {
		case line == beginChunk:
			return h, nil
		case strings.HasPrefix(line, "Command line: "):
			h.CommandLine = strings.TrimPrefix(line, "Command line: ")
		case strings.HasPrefix(line, "Geometry file: "):
			h.GeometryFile = strings.TrimPrefix(line, "Geometry file: ")
		}
	}
	if err := r.sc.Err(); err != nil {
		return h, err
	}
	return h, io.EOF
}

/*****************************************************************************************************************/

// ReadImage reads one chunk starting at the already-consumed
// "----- Begin chunk -----" line (either from ReadHeader's return or a
// prior ReadImage call leaving the scanner positioned right after its
// "----- End chunk -----"). It returns io.EOF once no further chunk begins.
func (r *Reader) ReadImage() (*detector.Image, error) {
	img := &detector.Image{}

	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		switch {
		case line == endChunk:
			return img, nil
		case strings.HasPrefix(line, "Image serial number = "):
			v, _ := strconv.ParseUint(strings.TrimPrefix(line, "Image serial number = "), 10, 64)
			img.Serial = v
		case strings.HasPrefix(line, "indexed_by = "):
			img.IndexedBy = strings.TrimPrefix(line, "indexed_by = ")
		case line == peakListHdr:
			peaks, err := r.readPeakList()
			if err != nil {
				return img, err
			}
			img.Peaks = peaks
		case line == beginCrystal:
			c, err := r.readCrystal()
			if err != nil {
				return img, err
			}
			img.Crystals = append(img.Crystals, c)
		}
	}

	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

/*****************************************************************************************************************/

func (r *Reader) readPeakList() ([]peaksearch.Peak, error) {
	var peaks []peaksearch.Peak
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == peakListEnd {
			return peaks, nil
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		fs, _ := strconv.ParseFloat(fields[0], 64)
		ss, _ := strconv.ParseFloat(fields[1], 64)
		intensity, _ := strconv.ParseFloat(fields[3], 64)
		panel, _ := strconv.Atoi(fields[4])
		peaks = append(peaks, peaksearch.Peak{FS: fs, SS: ss, Intensity: intensity, Panel: panel})
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return peaks, io.ErrUnexpectedEOF
}

/*****************************************************************************************************************/

func (r *Reader) readCrystal() (*detector.Crystal, error) {
	var xtal *detector.Crystal

	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		switch {
		case line == endCrystal:
			if xtal == nil {
				xtal = detector.NewCrystal(nil)
			}
			return xtal, nil
		case strings.HasPrefix(line, "Cell parameters: "):
			c, err := parseCellLine(strings.TrimPrefix(line, "Cell parameters: "))
			if err != nil {
				return nil, err
			}
			xtal = detector.NewCrystal(c)
		case strings.HasPrefix(line, "profile_radius = "):
			if xtal == nil {
				xtal = detector.NewCrystal(nil)
			}
			fields := strings.Fields(strings.TrimPrefix(line, "profile_radius = "))
			if len(fields) > 0 {
				if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
					xtal.ProfileRadius = v * 1e9
				}
			}
		case line == reflListHdr:
			if xtal == nil {
				xtal = detector.NewCrystal(nil)
			}
			if err := r.readReflections(xtal); err != nil {
				return nil, err
			}
		}
	}

	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

/*****************************************************************************************************************/

func (r *Reader) readReflections(xtal *detector.Crystal) error {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == reflListEnd {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		h, _ := strconv.Atoi(fields[0])
		k, _ := strconv.Atoi(fields[1])
		l, _ := strconv.Atoi(fields[2])
		idx, err := reflection.NewMillerIndex(h, k, l)
		if err != nil {
			continue
		}
		ref := xtal.Reflections.Insert(idx)
		ref.Intensity, _ = strconv.ParseFloat(fields[3], 64)
		ref.Sigma, _ = strconv.ParseFloat(fields[4], 64)
		ref.Peak, _ = strconv.ParseFloat(fields[5], 64)
		ref.Background, _ = strconv.ParseFloat(fields[6], 64)
		ref.FS, _ = strconv.ParseFloat(fields[7], 64)
		ref.SS, _ = strconv.ParseFloat(fields[8], 64)
		ref.Panel, _ = strconv.Atoi(fields[9])
	}
	if err := r.sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

/*****************************************************************************************************************/

// parseCellLine is the inverse of formatCellLine.
func parseCellLine(s string) (*cell.UnitCell, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("stream: malformed cell line %q", s)
	}

	lengths := strings.Fields(strings.TrimSuffix(strings.TrimSpace(parts[0]), "nm"))
	angles := strings.Fields(strings.TrimSuffix(strings.TrimSpace(parts[1]), "deg"))
	if len(lengths) < 3 || len(angles) < 3 {
		return nil, fmt.Errorf("stream: malformed cell line %q", s)
	}

	a, _ := strconv.ParseFloat(lengths[0], 64)
	b, _ := strconv.ParseFloat(lengths[1], 64)
	cc, _ := strconv.ParseFloat(lengths[2], 64)
	al, _ := strconv.ParseFloat(angles[0], 64)
	be, _ := strconv.ParseFloat(angles[1], 64)
	ga, _ := strconv.ParseFloat(angles[2], 64)

	uc, err := cell.NewFromParameters(a*1e-9, b*1e-9, cc*1e-9, al*math.Pi/180, be*math.Pi/180, ga*math.Pi/180)
	if err != nil {
		return nil, err
	}

	for _, p := range parts[2:] {
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "lattice_type "):
			uc.SetLatticeType(parseLatticeType(strings.TrimPrefix(p, "lattice_type ")))
		case strings.HasPrefix(p, "centering "):
			v := strings.TrimPrefix(p, "centering ")
			if len(v) > 0 {
				uc.SetCentering(cell.Centering(v[0]))
			}
		case strings.HasPrefix(p, "unique_axis "):
			v := strings.TrimPrefix(p, "unique_axis ")
			if len(v) > 0 {
				uc.SetUniqueAxis(cell.UniqueAxis(v[0]))
			}
		}
	}
	return uc, nil
}

/*****************************************************************************************************************/

func parseLatticeType(s string) cell.LatticeType {
	switch s {
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
