// Package tctest builds fake THERMOCALC working directories for tests.
//
// The fake executable is a shell script, so helpers skip on windows.
package tctest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Name is the scriptfile name used by the fixture (tc-test.txt).
const Name = "test"

// Script is the fixture scriptfile.
const Script = `% psb test scriptfile
axfile mp50
setbulk yes 55.0 10.0 5.0 3.0
setbulk yes 60.0 12.0 4.0 2.0
setexcess q H2O
calctatp ask
printbulkinfo yes
printxyz yes
dogmin no
setdefTwindow yes 400 800
setdefPwindow yes 2 12
% {PSBGUESS-BEGIN}
ptguess 6 600
% {PSBGUESS-END}
*
trailing text ignored
`

// Log is a tc-log.txt holding a single calculated point at 8 kbar, 650 °C
// for g + bi + q.
const Log = `THERMOCALC 3.45 log
phases: g bi q
variance of required equilibrium (4?)
 P(kbar)     T(C)
   8.000   650.000
% --------------------------------------------------------
% at P = 8, T = 650, for: g bi q
% --------------------------------------------------------
ptguess 8.0 650.0
% --------------------------------------------------------
xyzguess x(g)           0.870000
xyzguess z(g)           0.120000
xyzguess x(bi)          0.560000
% --------------------------------------------------------
mode        g        bi         q
rbi yes   0.1000   0.3500   0.5500
rbi  H2O  SiO2  Al2O3  FeO  MgO
g    0.0000  37.00  21.00  30.00  10.00   0.0  0.0
bi   4.0000  36.00  18.00  20.00  12.00   0.0  0.0
q    0.0000 100.00   0.00   0.00   0.00   0.0  0.0
`

// Stdout is the console output of the fake THERMOCALC.
const Stdout = `THERMOCALC 3.45 fake build
using tc-ds62.txt produced at 12.00 on Mon 1 Jan 2024
choose from: q g bi mu H2O
`

// Options tweak the fixture.
type Options struct {
	// Script replaces the scriptfile content.
	Script string
	// Log replaces the tc-log.txt written on every run.
	Log string
	// Stdout replaces the console output.
	Stdout string
	// NoPrefs omits tc-prefs.txt.
	NoPrefs bool
	// NoExe omits the THERMOCALC executable.
	NoExe bool
	// Drawpd adds a fake drawpd executable.
	Drawpd bool
}

// Workdir creates a fake THERMOCALC working directory and returns its path.
func Workdir(t testing.TB, opts Options) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake THERMOCALC requires a POSIX shell")
	}
	dir := t.TempDir()

	script := opts.Script
	if script == "" {
		script = Script
	}
	log := opts.Log
	if log == "" {
		log = Log
	}
	stdout := opts.Stdout
	if stdout == "" {
		stdout = Stdout
	}

	write(t, filepath.Join(dir, "tc-"+Name+".txt"), script, 0644)
	write(t, filepath.Join(dir, "tc-mp50.txt"), "% a-x models\n", 0644)
	write(t, filepath.Join(dir, "tc-ds62.txt"), "% dataset\n", 0644)
	if !opts.NoPrefs {
		write(t, filepath.Join(dir, "tc-prefs.txt"), "scriptfile "+Name+"\ncalcmode 1\n", 0644)
	}

	// Fixture files live next to the executables; the scripts find them
	// through $0 so clones in other directories still work.
	write(t, filepath.Join(dir, ".fixture-log"), log, 0644)
	write(t, filepath.Join(dir, ".fixture-stdout"), stdout, 0644)
	if !opts.NoExe {
		write(t, filepath.Join(dir, "tc345L"), fakeTC, 0755)
	}
	if opts.Drawpd {
		write(t, filepath.Join(dir, "dr116L"), fakeDrawpd, 0755)
	}
	return dir
}

const fakeTC = `#!/bin/sh
here=$(dirname "$0")
cat > stdin.txt
cp "$here/.fixture-log" tc-log.txt
cat "$here/.fixture-stdout"
`

const fakeDrawpd = `#!/bin/sh
cat > /dev/null
echo "drawpd done"
touch drawpd-ran
`

func write(t testing.TB, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
}
