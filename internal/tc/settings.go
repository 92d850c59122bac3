// Package tc drives the external THERMOCALC program.
//
// A working directory hosts the THERMOCALC executable, tc-prefs.txt, the
// scriptfile (tc-<name>.txt), the a-x file and the dataset. Init validates
// the directory and scriptfile, runs THERMOCALC once to learn the available
// phases, and returns Settings used for all later calculations.
//
// THERMOCALC reads its input files from the current directory and writes
// tc-log.txt there, so concurrent runs need separate directories (see
// Settings.CloneTo).
package tc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/petrolab/psb/internal/logging"
	"github.com/petrolab/psb/internal/phase"
)

// PrefsFile is the THERMOCALC preferences file name.
const PrefsFile = "tc-prefs.txt"

// Options configures Init.
type Options struct {
	// Encoding names the THERMOCALC text encoding (default mac-roman).
	Encoding string
	// TCPattern and DRPattern override the executable globs.
	TCPattern string
	DRPattern string
	// Timeout bounds one THERMOCALC run; zero means no limit.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Settings describes a validated THERMOCALC working directory.
type Settings struct {
	Workdir string
	TCExe   string
	// DRExe is empty when drawpd is not installed.
	DRExe string

	Name   string
	AxName string

	TRange    [2]float64
	PRange    [2]float64
	DefTRange [2]float64
	DefPRange [2]float64
	Bulk      [][]string
	Excess    phase.Set
	// Phases lists the phases THERMOCALC offers, sorted.
	Phases phase.Set

	// TCOutput is the output of the initial THERMOCALC run.
	TCOutput string

	EncodingName string
	enc          encoding.Encoding
	timeout      time.Duration
	logger       *zap.Logger
}

// DefaultPatterns returns the THERMOCALC and drawpd executable globs for
// the running platform.
func DefaultPatterns() (tcPattern, drPattern string) {
	switch {
	case runtime.GOOS == "windows":
		return "tc3*.exe", "dr1*.exe"
	case runtime.GOOS == "linux":
		return "tc3*L", "dr*L"
	default:
		return "tc3*", "dr1*"
	}
}

// Init validates workdir and runs THERMOCALC once.
// The returned error is an *InitError, *ScriptfileError or *TCError for
// problems with the directory contents; other errors are I/O failures.
func Init(ctx context.Context, workdir string, opts Options) (*Settings, error) {
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("resolving workdir: %w", err)
	}
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	s := &Settings{
		Workdir:      abs,
		EncodingName: opts.Encoding,
		enc:          enc,
		timeout:      opts.Timeout,
		logger:       logging.OrNop(opts.Logger),
	}

	tcPat, drPat := DefaultPatterns()
	if opts.TCPattern != "" {
		tcPat = opts.TCPattern
	}
	if opts.DRPattern != "" {
		drPat = opts.DRPattern
	}
	s.TCExe = findExecutable(abs, tcPat)
	if s.TCExe == "" {
		return nil, &InitError{"No THERMOCALC executable in working directory."}
	}
	s.DRExe = findExecutable(abs, drPat)

	if err := s.readPrefs(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.Scriptfile())
	if err != nil {
		return nil, fmt.Errorf("reading scriptfile: %w", err)
	}
	content, err := s.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding scriptfile: %w", err)
	}
	sc, err := ParseScript(content, func(name string) bool {
		return fileExists(filepath.Join(abs, "tc-"+name+".txt"))
	})
	if err != nil {
		return nil, err
	}
	s.AxName = sc.AxName
	s.TRange, s.PRange = sc.TRange, sc.PRange
	s.DefTRange, s.DefPRange = sc.TRange, sc.PRange
	s.Bulk = sc.Bulk
	s.Excess = sc.Excess

	out, err := s.Run(ctx, "\nkill\n\n")
	if err != nil {
		return nil, err
	}
	s.TCOutput = out
	if err := BombedError(out); err != nil {
		return nil, err
	}
	s.Phases = parseChooseFrom(out)
	return s, nil
}

// readPrefs parses tc-prefs.txt for the scriptfile name and calcmode.
func (s *Settings) readPrefs() error {
	f, err := os.Open(s.PrefsFile())
	if err != nil {
		if os.IsNotExist(err) {
			return &InitError{"No tc-prefs.txt file in working directory."}
		}
		return &InitError{"tc-prefs.txt file in working directory cannot be accessed."}
	}
	defer f.Close()

	var r io.Reader = f
	if s.enc != nil {
		r = s.enc.NewDecoder().Reader(f)
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		kw := strings.Fields(scanner.Text())
		if len(kw) < 2 {
			continue
		}
		switch kw[0] {
		case "scriptfile":
			s.Name = kw[1]
			if !fileExists(s.Scriptfile()) {
				return &InitError{fmt.Sprintf("tc-prefs: scriptfile tc-%s.txt does not exists in your working directory.", s.Name)}
			}
		case "calcmode":
			if kw[1] != "1" {
				return &InitError{"tc-prefs: calcmode must be 1."}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return &InitError{"tc-prefs.txt file in working directory cannot be accessed."}
	}
	if s.Name == "" {
		return &InitError{"tc-prefs: scriptfile keyword missing."}
	}
	return nil
}

// BombedError returns a *TCError when THERMOCALC output reports BOMBED.
func BombedError(out string) error {
	_, after, found := strings.Cut(out, "BOMBED")
	if !found {
		return nil
	}
	msg, _, _ := strings.Cut(after, "\n")
	return &TCError{strings.TrimSpace(msg)}
}

func parseChooseFrom(out string) phase.Set {
	_, after, found := strings.Cut(out, "choose from:")
	if !found {
		return phase.Set{}
	}
	line, _, _ := strings.Cut(after, "\n")
	return phase.NewSet(strings.Fields(line)...)
}

func findExecutable(dir, pattern string) string {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return ""
	}
	sort.Strings(matches)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
			continue
		}
		return m
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Scriptfile returns the scriptfile path.
func (s *Settings) Scriptfile() string { return s.path("tc-" + s.Name + ".txt") }

// DRFile returns the drawpd output path THERMOCALC writes.
func (s *Settings) DRFile() string { return s.path("tc-" + s.Name + "-dr.txt") }

// Logfile returns the THERMOCALC log path.
func (s *Settings) Logfile() string { return s.path("tc-log.txt") }

// DrawpdFile returns the drawpd input file path.
func (s *Settings) DrawpdFile() string { return s.path("dr-" + s.Name + ".txt") }

// Axfile returns the a-x file path.
func (s *Settings) Axfile() string { return s.path("tc-" + s.AxName + ".txt") }

// PrefsFile returns the tc-prefs.txt path.
func (s *Settings) PrefsFile() string { return s.path(PrefsFile) }

func (s *Settings) path(name string) string { return filepath.Join(s.Workdir, name) }

// Version returns the first line of THERMOCALC output.
func (s *Settings) Version() string {
	line, _, _ := strings.Cut(s.TCOutput, "\n")
	return strings.TrimSpace(line)
}

// Dataset returns the dataset description THERMOCALC reports.
func (s *Settings) Dataset() string {
	_, after, found := strings.Cut(s.TCOutput, "using ")
	if !found {
		return ""
	}
	line, _, _ := strings.Cut(after, "\n")
	return strings.TrimSpace(line)
}

// DatasetFile returns the dataset file path, or "" when unknown.
func (s *Settings) DatasetFile() string {
	_, after, found := strings.Cut(s.TCOutput, "using ")
	if !found {
		return ""
	}
	name, _, found := strings.Cut(after, " produced")
	if !found {
		return ""
	}
	return s.path(strings.TrimSpace(name))
}

func (s *Settings) String() string {
	return strings.Join([]string{
		"THERMOCALC settings",
		"===================",
		fmt.Sprintf("Working directory: %s", s.Workdir),
		fmt.Sprintf("TC version: %s", s.Version()),
		fmt.Sprintf("Scriptfile: tc-%s.txt", s.Name),
		fmt.Sprintf("AX file: tc-%s.txt", s.AxName),
		fmt.Sprintf("Status: %s", Status(nil)),
	}, "\n")
}
