package tc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// LookupEncoding maps an encoding name to a text encoding. UTF-8 (and an
// empty name for callers that pass through) yields nil, meaning bytes are
// used as-is.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mac-roman", "macroman", "macintosh", "mac_roman":
		return charmap.Macintosh, nil
	case "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported THERMOCALC encoding %q", name)
	}
}

func (s *Settings) decode(b []byte) (string, error) {
	if s.enc == nil {
		return string(b), nil
	}
	out, err := s.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *Settings) encode(text string) ([]byte, error) {
	if s.enc == nil {
		return []byte(text), nil
	}
	return s.enc.NewEncoder().Bytes([]byte(text))
}

// Run feeds input to THERMOCALC on stdin and returns its combined output.
// A non-zero exit status is not an error; callers inspect the output.
func (s *Settings) Run(ctx context.Context, input string) (string, error) {
	return s.runExe(ctx, s.TCExe, input)
}

// RunDrawpd runs drawpd on the project drawpd file.
func (s *Settings) RunDrawpd(ctx context.Context) (string, error) {
	if s.DRExe == "" {
		return "", ErrNoDrawpd
	}
	return s.runExe(ctx, s.DRExe, s.Name+"\n")
}

func (s *Settings) runExe(ctx context.Context, exe, input string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	in, err := s.encode(input)
	if err != nil {
		return "", fmt.Errorf("encoding input: %w", err)
	}

	c := exec.CommandContext(ctx, exe) //nolint:gosec // G204: exe found in workdir
	c.Dir = s.Workdir
	c.Stdin = bytes.NewReader(in)
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	start := time.Now()
	runErr := c.Run()
	s.logger.Debug("thermocalc run",
		zap.String("exe", filepath.Base(exe)),
		zap.String("workdir", s.Workdir),
		zap.Duration("took", time.Since(start)),
		zap.Int("bytes", out.Len()),
		zap.Error(runErr))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("running %s: %w", filepath.Base(exe), ctxErr)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return "", fmt.Errorf("running %s: %w", filepath.Base(exe), runErr)
		}
	}

	text, err := s.decode(out.Bytes())
	if err != nil {
		return "", fmt.Errorf("decoding output: %w", err)
	}
	return text, nil
}

// ReadLog returns the content of tc-log.txt.
func (s *Settings) ReadLog() (string, error) {
	raw, err := os.ReadFile(s.Logfile())
	if err != nil {
		return "", fmt.Errorf("reading THERMOCALC log: %w", err)
	}
	return s.decode(raw)
}

// WriteText writes text to path in the THERMOCALC encoding.
func (s *Settings) WriteText(path, text string) error {
	b, err := s.encode(text)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, b, 0644)
}

// CloneTo copies the THERMOCALC input files into dir and returns settings
// that run there. The executables stay in the original directory.
func (s *Settings) CloneTo(dir string) (*Settings, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating clone dir: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(s.Workdir, "tc-*.txt"))
	if err != nil {
		return nil, err
	}
	if ds := s.DatasetFile(); ds != "" {
		files = append(files, ds)
	}
	for _, src := range files {
		base := filepath.Base(src)
		if base == "tc-log.txt" {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, base)); err != nil {
			return nil, fmt.Errorf("cloning %s: %w", base, err)
		}
	}

	clone := *s
	clone.Workdir = dir
	return &clone, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: files from the workdir
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec // G304: clone target
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
