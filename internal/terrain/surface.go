package terrain

import "fmt"

// SurfaceType classifies a terrain sample by its lateral distance from the
// centreline. It drives shading and obstacle density.
type SurfaceType uint8

const (
	SurfaceTrack SurfaceType = iota
	SurfaceBank
	SurfaceCliff
	SurfacePlateau
)

var surfaceNames = [...]string{
	SurfaceTrack:   "track",
	SurfaceBank:    "bank",
	SurfaceCliff:   "cliff",
	SurfacePlateau: "plateau",
}

func AllSurfaces() []SurfaceType {
	return []SurfaceType{SurfaceTrack, SurfaceBank, SurfaceCliff, SurfacePlateau}
}

func (s SurfaceType) String() string {
	if int(s) < len(surfaceNames) {
		return surfaceNames[s]
	}
	return fmt.Sprintf("surface(%d)", s)
}

func (s SurfaceType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
