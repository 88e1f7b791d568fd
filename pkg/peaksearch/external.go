package peaksearch

/*****************************************************************************************************************/

// ExternalFinder wraps a pre-computed peak table attached to the image (e.g.
// from an HDF5/CXI peak dataset), optionally re-validating each entry
// against the frame's own SNR criterion before returning it.
type ExternalFinder struct {
	Peaks []Peak

	Revalidate bool
	MinSNR     float64
	Radius     int
}

/*****************************************************************************************************************/

func (e ExternalFinder) snrAt(f *Frame, fs, ss int) float64 {
	g := GradientFinder{Radius: e.Radius}
	_, _, _, _, snr := g.centreOfMass(f, fs, ss)
	return snr
}

/*****************************************************************************************************************/

// Find implements Finder. It returns the supplied peaks that belong to f's
// panel (and, when Revalidate is set, pass the SNR check) with their
// coordinates unchanged; HalfPixelShift is not applied.
func (e ExternalFinder) Find(f *Frame) []Peak {
	out := make([]Peak, 0, len(e.Peaks))

	for _, p := range e.Peaks {
		if p.Panel != f.Panel {
			continue
		}
		if e.Revalidate {
			if e.snrAt(f, int(p.FS), int(p.SS)) < e.MinSNR {
				continue
			}
		}
		out = append(out, p)
	}

	return out
}
