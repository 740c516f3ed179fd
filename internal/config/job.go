package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/coords"
)

// Units of a placement position.
const (
	UnitsSurface = "surface"
	UnitsPage    = "page"
)

// Job is a batch stamping job:
//
//	document = "contract.pdf"
//	output   = "out/contract-signed.pdf"
//
//	[[stamp]]
//	id   = "seal"
//	file = "seal.png"
//
//	[[place]]
//	stamp = "seal"
//	page  = 3
//	x     = 420
//	y     = 120
//	units = "page"
type Job struct {
	Document string  `toml:"document"`
	Output   string  `toml:"output"`
	Stamps   []Stamp `toml:"stamp"`
	Places   []Place `toml:"place"`
}

// Stamp declares a stamp source. Exactly one of File, QR and PDF417 is set.
type Stamp struct {
	ID     string `toml:"id"`
	File   string `toml:"file"`
	QR     string `toml:"qr"`
	PDF417 string `toml:"pdf417"`
	Size   int    `toml:"size"`
}

// Place puts a stamp on a page. Without a position the default bottom-right
// placement is used. Surface units use the editing surface with a top-left
// origin; page units use PDF points with a bottom-left origin. Either way
// X and Y locate the stamp's center.
type Place struct {
	Stamp  string   `toml:"stamp"`
	Page   int      `toml:"page"`
	X      *float64 `toml:"x"`
	Y      *float64 `toml:"y"`
	ScaleX *float64 `toml:"scale_x"`
	ScaleY *float64 `toml:"scale_y"`
	Units  string   `toml:"units"`
}

// LoadJob reads and validates a job file. Relative paths inside it are
// resolved against the job file's directory.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := toml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("config: parsing job %s: %w", path, err)
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("config: job %s: %w", path, err)
	}
	job.resolve(filepath.Dir(path))
	return &job, nil
}

// Validate checks the job for missing or inconsistent entries.
func (j *Job) Validate() error {
	if j.Document == "" {
		return fmt.Errorf("%w: document is required", stamper.ErrInvalidParam)
	}
	ids := make(map[string]bool, len(j.Stamps))
	for i, s := range j.Stamps {
		if s.ID == "" {
			return fmt.Errorf("%w: stamp %d has no id", stamper.ErrInvalidParam, i+1)
		}
		if ids[s.ID] {
			return fmt.Errorf("%w: stamp %q declared twice", stamper.ErrDuplicate, s.ID)
		}
		ids[s.ID] = true
		sources := 0
		for _, v := range []string{s.File, s.QR, s.PDF417} {
			if v != "" {
				sources++
			}
		}
		if sources != 1 {
			return fmt.Errorf("%w: stamp %q needs exactly one of file, qr, pdf417", stamper.ErrInvalidParam, s.ID)
		}
	}
	for i, p := range j.Places {
		switch {
		case !ids[p.Stamp]:
			return fmt.Errorf("%w: place %d uses unknown stamp %q", stamper.ErrNotFound, i+1, p.Stamp)
		case p.Page < 1:
			return fmt.Errorf("%w: place %d has page %d", stamper.ErrInvalidPage, i+1, p.Page)
		case (p.X == nil) != (p.Y == nil):
			return fmt.Errorf("%w: place %d needs both x and y", stamper.ErrInvalidParam, i+1)
		case p.Units != "" && p.Units != UnitsSurface && p.Units != UnitsPage:
			return fmt.Errorf("%w: place %d has units %q", stamper.ErrInvalidParam, i+1, p.Units)
		case p.ScaleX != nil && *p.ScaleX <= 0, p.ScaleY != nil && *p.ScaleY <= 0:
			return fmt.Errorf("%w: place %d has a non-positive scale", stamper.ErrInvalidParam, i+1)
		}
	}
	return nil
}

func (j *Job) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	j.Document = abs(j.Document)
	j.Output = abs(j.Output)
	for i := range j.Stamps {
		j.Stamps[i].File = abs(j.Stamps[i].File)
	}
}

// HasPosition reports whether the placement overrides the default position.
func (p Place) HasPosition() bool {
	return p.X != nil && p.Y != nil
}

// Resolve converts the placement into surface coordinates. current holds
// the default position and scale the stamp was given when placed.
func (p Place) Resolve(page, surface coords.Size, current coords.Placement) (center coords.Point, scaleX, scaleY float64, err error) {
	center = current.Center
	scaleX, scaleY = current.Scale, current.Scale
	if p.ScaleX != nil {
		scaleX = *p.ScaleX
	}
	if p.ScaleY != nil {
		scaleY = *p.ScaleY
	}
	if p.HasPosition() {
		center = coords.Point{X: *p.X, Y: *p.Y}
	}
	if p.Units != UnitsPage {
		return center, scaleX, scaleY, nil
	}

	m, err := coords.NewMapping(page, surface)
	if err != nil {
		return coords.Point{}, 0, 0, err
	}
	if p.HasPosition() {
		if center, err = m.ToSurface(center); err != nil {
			return coords.Point{}, 0, 0, err
		}
	}
	sx, sy := m.Scale()
	if p.ScaleX != nil {
		scaleX /= sx
	}
	if p.ScaleY != nil {
		scaleY /= sy
	}
	return center, scaleX, scaleY, nil
}
