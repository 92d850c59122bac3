package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// Page writes a report to w. Reports longer than the terminal go through
// $PSB_PAGER, $PAGER or less when w is the terminal and paging is not
// disabled by noPager or PSB_NO_PAGER.
func Page(w io.Writer, report string, noPager bool) error {
	args := pagerArgs()
	if noPager || w != os.Stdout || len(args) == 0 || !IsTerminal() ||
		lineCount(report) < screenRows() {
		_, err := io.WriteString(w, report)
		return err
	}

	pager := exec.Command(args[0], args[1:]...) //nolint:gosec // G204: pager chosen by the user
	pager.Stdin = strings.NewReader(report)
	pager.Stdout = os.Stdout
	pager.Stderr = os.Stderr
	if _, ok := os.LookupEnv("LESS"); !ok {
		// raw colors, quit when it fits, keep the screen
		pager.Env = append(os.Environ(), "LESS=-RFX")
	}
	if err := pager.Run(); err != nil {
		return fmt.Errorf("running pager %s: %w", args[0], err)
	}
	return nil
}

func pagerArgs() []string {
	if os.Getenv("PSB_NO_PAGER") != "" {
		return nil
	}
	for _, env := range []string{"PSB_PAGER", "PAGER"} {
		if v := os.Getenv(env); v != "" {
			return strings.Fields(v)
		}
	}
	return []string{"less"}
}

// screenRows is the stdout terminal height, or a large number when it is
// unknown so that nothing is paged.
func screenRows() int {
	if _, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && h > 0 {
		return h
	}
	return int(^uint(0) >> 1)
}

// lineCount counts printed lines; a final newline does not start one.
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
