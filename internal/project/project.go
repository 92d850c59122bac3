// Package project reads and writes psb project files.
//
// A project file stores one section built in a THERMOCALC working
// directory, optionally with its calculated composition grid. Files are
// gzip compressed JSON.
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/petrolab/psb/internal/grid"
	"github.com/petrolab/psb/internal/lock"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc"
	"github.com/petrolab/psb/internal/util"
)

// FormatVersion is the current project file format.
const FormatVersion = 1

// Ext is the project file extension.
const Ext = ".psb"

// ErrIncompatible is returned by Merge for projects that cannot be
// explored together.
var ErrIncompatible = errors.New("incompatible projects")

// Project is the content of a project file.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Version   int       `json:"version"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
	TCVersion string    `json:"tcversion"`
	Workdir   string    `json:"workdir"`
	// Name is the scriptfile name the section was built with.
	Name     string           `json:"name"`
	Section  *section.Section `json:"section"`
	Bulk     [][]string       `json:"bulk"`
	Variance map[string]int   `json:"variance,omitempty"`
	Grid     *grid.Data       `json:"grid,omitempty"`

	// Path is where the project was loaded from or saved to.
	Path string `json:"-"`
}

// New returns an empty project for a section of the given kind over the
// scriptfile window. T-X and P-X sections need two bulk compositions; their
// fixed p or T is the middle of the scriptfile range.
func New(st *tc.Settings, kind section.Kind) (*Project, error) {
	var sec *section.Section
	switch kind {
	case section.PT:
		sec = section.New(kind, st.TRange, st.PRange, st.Excess)
	case section.TX, section.PX:
		if len(st.Bulk) < 2 {
			return nil, fmt.Errorf("%s sections need two bulk compositions in setbulk", kind)
		}
		if kind == section.TX {
			sec = section.New(kind, st.TRange, [2]float64{0, 1}, st.Excess)
			sec.Fixed = (st.PRange[0] + st.PRange[1]) / 2
		} else {
			sec = section.New(kind, [2]float64{0, 1}, st.PRange, st.Excess)
			sec.Fixed = (st.TRange[0] + st.TRange[1]) / 2
		}
	default:
		return nil, fmt.Errorf("unknown section kind %q", kind)
	}
	now := time.Now().UTC()
	return &Project{
		ID:        uuid.New(),
		Version:   FormatVersion,
		Created:   now,
		Updated:   now,
		TCVersion: st.Version(),
		Workdir:   st.Workdir,
		Name:      st.Name,
		Section:   sec,
		Bulk:      slices.Clone(st.Bulk),
		Variance:  make(map[string]int),
	}, nil
}

// Load reads a project file.
func Load(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening project: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", path, err)
	}
	defer zr.Close()

	var p Project
	if err := json.NewDecoder(zr).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", path, err)
	}
	if p.Version > FormatVersion {
		return nil, fmt.Errorf("project %s has format version %d, this psb reads up to %d", path, p.Version, FormatVersion)
	}
	if p.Section == nil {
		return nil, fmt.Errorf("project %s has no section", path)
	}
	if p.Section.Invs == nil {
		p.Section.Invs = make(map[int]*section.InvPoint)
	}
	if p.Section.Unis == nil {
		p.Section.Unis = make(map[int]*section.UniLine)
	}
	if p.Variance == nil {
		p.Variance = make(map[string]int)
	}
	if p.Workdir == "" {
		p.Workdir = filepath.Dir(path)
	}
	p.Path = path
	return &p, nil
}

// Save writes the project atomically.
func (p *Project) Save(path string) error {
	p.Version = FormatVersion
	p.Updated = time.Now().UTC()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(p); err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing project: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	p.Path = path
	return nil
}

// Edited marks the section as changed. The grid and variances no longer
// match the areas and are dropped.
func (p *Project) Edited() {
	p.Grid = nil
	p.Variance = make(map[string]int)
}

// Dir is the absolute THERMOCALC working directory of the project. With
// origwd the stored working directory is used, otherwise the directory
// holding the file.
func (p *Project) Dir(origwd bool) string {
	dir := p.Workdir
	if !origwd && p.Path != "" {
		dir = filepath.Dir(p.Path)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// Settings initializes THERMOCALC in the working directory of the project.
// THERMOCALC runs during initialization, so callers hold the workdir lock.
func (p *Project) Settings(ctx context.Context, origwd bool, opts tc.Options) (*tc.Settings, error) {
	return tc.Init(ctx, p.Dir(origwd), opts)
}

// Lock takes the working directory lock for exclusive THERMOCALC access.
func Lock(ctx context.Context, workdir, command string) (*lock.Lock, error) {
	l := lock.New(workdir)
	if err := l.Acquire(ctx, lock.DefaultTimeout, command); err != nil {
		return nil, err
	}
	return l, nil
}

// Merge checks that projects can be explored together: same section kind,
// same THERMOCALC version, same working directory and same bulk
// composition. With origwd the stored
// working directories are compared, otherwise the file locations.
func Merge(ps []*Project, origwd bool) error {
	if len(ps) == 0 {
		return fmt.Errorf("%w: no project given", ErrIncompatible)
	}
	first := ps[0]
	for _, p := range ps[1:] {
		if p.Section.Kind != first.Section.Kind {
			return fmt.Errorf("%w: %s is a %s section, %s is %s",
				ErrIncompatible, p.Path, p.Section.Kind, first.Path, first.Section.Kind)
		}
		if p.TCVersion != first.TCVersion {
			return fmt.Errorf("%w: %s was built with THERMOCALC %s, %s with %s",
				ErrIncompatible, p.Path, p.TCVersion, first.Path, first.TCVersion)
		}
		if p.Dir(origwd) != first.Dir(origwd) {
			return fmt.Errorf("%w: working directories of merged projects must be same", ErrIncompatible)
		}
		if !equalBulk(p.Bulk, first.Bulk) {
			return fmt.Errorf("%w: bulks in merged projects must be same", ErrIncompatible)
		}
	}
	return nil
}

func equalBulk(a, b [][]string) bool {
	return slices.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) })
}
