package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/project"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc/tctest"
)

// resetFlags restores every flag of c and its subcommands to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	t.Setenv("PSB_NO_PAGER", "1")
	t.Setenv("PSB_WORKERS", "")
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "psb %s\n%s", strings.Join(args, " "), out)
	return out
}

func workdir(t *testing.T, opts tctest.Options) string {
	t.Helper()
	if opts.Stdout == "" {
		opts.Stdout = tctest.Stdout + "variance of required equilibrium (4?)\n"
	}
	dir := tctest.Workdir(t, opts)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "psb.toml"), []byte("encoding = \"utf-8\"\n"), 0644))
	return dir
}

// triangleProject creates garnet.psb holding the manual field bi bounded by
// three lines.
func triangleProject(t *testing.T, dir string) {
	t.Helper()
	mustExecute(t, "-C", dir, "init", "garnet")
	for _, p := range [][]string{
		{"g bi st", "g st", "500", "5"},
		{"g bi mu", "g mu", "700", "5"},
		{"bi mu st", "mu st", "600", "9"},
	} {
		mustExecute(t, "-C", dir, "inv", "add", "garnet", "--phases", p[0], "--out", p[1], "--manual", "--x", p[2], "--y", p[3])
	}
	for _, u := range [][]string{
		{"g bi", "g", "1", "2"},
		{"bi mu", "mu", "2", "3"},
		{"bi st", "st", "3", "1"},
	} {
		mustExecute(t, "-C", dir, "uni", "add", "garnet", "--phases", u[0], "--out", u[1], "--manual", "--begin", u[2], "--end", u[3])
	}
}

func TestInitAndCheck(t *testing.T) {
	dir := workdir(t, tctest.Options{})

	out := mustExecute(t, "-C", dir, "check")
	assert.Contains(t, out, "ready")

	out = mustExecute(t, "-C", dir, "init", "garnet")
	assert.Contains(t, out, "Created")
	assert.FileExists(t, filepath.Join(dir, "garnet.psb"))

	_, err := execute(t, "-C", dir, "init", "garnet")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "-C", dir, "init", "other", "--fixed", "7")
	assert.ErrorContains(t, err, "tx and px")

	mustExecute(t, "-C", dir, "init", "garnet", "--force", "--xrange", "450,750")
	_, err = execute(t, "-C", dir, "init", "bad", "--yrange", "9,3")
	assert.ErrorContains(t, err, "min < max")
}

func TestCheckFailure(t *testing.T) {
	dir := workdir(t, tctest.Options{NoExe: true})
	out, err := execute(t, "-C", dir, "check")
	code, ok := exitCode(err)
	require.True(t, ok, "want silent exit, got %v", err)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "No THERMOCALC executable")
}

func TestInvCalculated(t *testing.T) {
	dir := workdir(t, tctest.Options{})
	mustExecute(t, "-C", dir, "init", "garnet")

	out := mustExecute(t, "-C", dir, "inv", "add", "garnet", "--phases", "g bi", "--out", "g bi")
	assert.Contains(t, out, "i1")
	assert.Contains(t, out, "=650")

	out = mustExecute(t, "-C", dir, "inv", "ls", "garnet", "--json")
	var rows []invRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 650.0, rows[0].X)
	assert.Equal(t, 8.0, rows[0].Y)
	assert.False(t, rows[0].Manual)

	_, err := execute(t, "-C", dir, "inv", "add", "garnet", "--phases", "g ky", "--out", "g ky")
	assert.ErrorContains(t, err, "does not offer")

	_, err = execute(t, "-C", dir, "uni", "add", "garnet", "--phases", "g bi", "--out", "g")
	assert.ErrorContains(t, err, "1 point(s) calculated")

	mustExecute(t, "-C", dir, "inv", "rm", "garnet", "i1")
	out = mustExecute(t, "-C", dir, "inv", "ls", "garnet")
	assert.Contains(t, out, "No invariant points")
}

func TestTriangleWorkflow(t *testing.T) {
	dir := workdir(t, tctest.Options{Drawpd: true})
	triangleProject(t, dir)

	out := mustExecute(t, "-C", dir, "uni", "ls", "garnet", "--json")
	var unis []uniRow
	require.NoError(t, json.Unmarshal([]byte(out), &unis))
	require.Len(t, unis, 3)
	assert.Equal(t, 3, unis[2].Begin)
	assert.Equal(t, 1, unis[2].End)

	out = mustExecute(t, "-C", dir, "areas", "garnet")
	assert.Contains(t, out, "full")
	assert.Contains(t, out, "i1")

	out = mustExecute(t, "-C", dir, "show", "garnet", "-o", "json", "--variance")
	var r report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "pt", r.Kind)
	require.Len(t, r.Areas, 1)
	assert.Equal(t, "bi", r.Areas[0].Label)
	require.NotNil(t, r.Areas[0].Variance)
	assert.Equal(t, 4, *r.Areas[0].Variance)

	out = mustExecute(t, "-C", dir, "show", "garnet", "-o", "yaml")
	assert.Contains(t, out, "kind: pt")
	out = mustExecute(t, "-C", dir, "show", "garnet", "-o", "geojson")
	assert.Contains(t, out, "FeatureCollection")
	out = mustExecute(t, "-C", dir, "show", "garnet")
	assert.Contains(t, out, "Areas")

	out = mustExecute(t, "-C", dir, "drawpd", "garnet", "--areas")
	assert.Contains(t, out, "drawpd done")
	assert.FileExists(t, filepath.Join(dir, "dr-"+tctest.Name+".txt"))

	_, err := execute(t, "-C", dir, "iso", "garnet", "bi", "-e", "mode")
	assert.ErrorContains(t, err, "no data")

	events, err := calclog.ReadEvents(dir)
	require.NoError(t, err)
	types := make(map[calclog.EventType]int)
	for _, ev := range events {
		types[ev.Type]++
	}
	assert.Equal(t, 1, types[calclog.EventInit])
	assert.Equal(t, 3, types[calclog.EventInvCalc])
	assert.Equal(t, 3, types[calclog.EventUniCalc])
	assert.Equal(t, 1, types[calclog.EventDrawpd])

	out = mustExecute(t, "-C", dir, "log", "--type", "uni_calc", "-n", "1")
	assert.Equal(t, 1, strings.Count(out, "uni_calc"))
	assert.Contains(t, out, "u3")
}

func TestGridAndExports(t *testing.T) {
	dir := workdir(t, tctest.Options{})
	triangleProject(t, dir)

	out := mustExecute(t, "-C", dir, "grid", "garnet", "--nx", "4", "--ny", "4", "-j", "2", "--plain")
	assert.Contains(t, out, "gridded: 2 ok")
	assert.Contains(t, out, "section 1: 16/16")

	out = mustExecute(t, "-C", dir, "vars", "garnet")
	assert.Contains(t, out, "bi Al2O3 FeO H2O MgO SiO2 mode x")

	out = mustExecute(t, "-C", dir, "iso", "garnet", "bi", "-e", "mode", "--records", "--which", "grid")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "field\t"))
	assert.True(t, strings.HasSuffix(lines[1], "\t0.35"))

	records := filepath.Join(dir, "bi-mode.txt")
	mustExecute(t, "-C", dir, "iso", "garnet", "bi", "-e", "mode", "--records", "--which", "grid", "-o", "bi-mode.txt")
	data, err := os.ReadFile(records)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))

	out = mustExecute(t, "-C", dir, "sqlite", "garnet", "garnet.db")
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, filepath.Join(dir, "garnet.db"))

	out = mustExecute(t, "-C", dir, "log", "--type", "grid_done")
	assert.Contains(t, out, "grid_done")
}

func TestVersion(t *testing.T) {
	out := mustExecute(t, "version")
	assert.True(t, strings.HasPrefix(out, "psb version "+Version), out)
}

func TestParseID(t *testing.T) {
	for _, tt := range []struct {
		in     string
		prefix byte
		want   int
		ok     bool
	}{
		{"3", 'i', 3, true},
		{"i3", 'i', 3, true},
		{"u12", 'u', 12, true},
		{"u3", 'i', 0, false},
		{"0", 'i', 0, false},
		{"x", 'u', 0, false},
	} {
		got, err := parseID(tt.in, tt.prefix)
		if tt.ok {
			assert.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got, tt.in)
		} else {
			assert.Error(t, err, tt.in)
		}
	}
}

func TestParseWhichAndComp(t *testing.T) {
	w, err := parseWhich("inv, grid")
	require.NoError(t, err)
	assert.NotZero(t, w)
	_, err = parseWhich("")
	assert.Error(t, err)
	_, err = parseWhich("foo")
	assert.ErrorContains(t, err, "foo")

	c, err := parseComp("g:x*100")
	require.NoError(t, err)
	assert.Equal(t, "g", c.phase)
	for _, bad := range []string{"g", ":x", "g:", "g:x+"} {
		_, err := parseComp(bad)
		assert.Error(t, err, bad)
	}
}

func TestConcurrentEditsKeepBoth(t *testing.T) {
	dir := workdir(t, tctest.Options{})
	mustExecute(t, "-C", dir, "init", "garnet")
	path := filepath.Join(dir, "garnet.psb")

	points := []*section.InvPoint{
		{Phases: phase.Parse("g bi st"), Out: phase.Parse("g st"), X: 500, Y: 5, Manual: true},
		{Phases: phase.Parse("g bi mu"), Out: phase.Parse("g mu"), X: 700, Y: 5, Manual: true},
	}
	start := make(chan struct{})
	errs := make([]error, len(points))
	var wg sync.WaitGroup
	for i, pt := range points {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = editProject(context.Background(), invAddCmd, path, func(_ context.Context, p *project.Project) (bool, error) {
				// hold the project between load and save
				time.Sleep(100 * time.Millisecond)
				p.Section.AddInv(pt)
				return true, nil
			})
		}()
	}
	close(start)
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	p, err := project.Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Section.Invs, 2)
}

func TestWithLockNested(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	var inner bool
	err := withLock(ctx, versionCmd, dir, func(ctx context.Context) error {
		return withLock(ctx, versionCmd, dir, func(context.Context) error {
			inner = true
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, inner)

	// a context without the lock has to wait for it
	err = withLock(ctx, versionCmd, dir, func(context.Context) error {
		short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		return withLock(short, versionCmd, dir, func(context.Context) error { return nil })
	})
	assert.Error(t, err)
}
