package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

const (
	flagOpen   = "open"
	flagImport = "import"
)

// Launch is what one start of the application asks for: libraries to open,
// in order, and files to import into the active library.
type Launch struct {
	Libraries []string
	Imports   []string
}

// ParseLaunch parses open arguments. The same grammar is used on the sending
// side and on the primary instance receiving a hand-off.
func ParseLaunch(args []string) (Launch, error) {
	fs := pflag.NewFlagSet(flagOpen, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opens := fs.StringArrayP(flagOpen, "o", nil, "library to open")
	imports := fs.StringArrayP(flagImport, "i", nil, "file to import")

	if err := fs.Parse(args); err != nil {
		return Launch{}, fmt.Errorf("parse launch arguments: %w", err)
	}

	launch := Launch{
		Libraries: append(slices.Clone(*opens), fs.Args()...),
		Imports:   slices.Clone(*imports),
	}
	for _, path := range slices.Concat(launch.Libraries, launch.Imports) {
		if strings.TrimSpace(path) == "" {
			return Launch{}, fmt.Errorf("parse launch arguments: empty path")
		}
	}
	return launch, nil
}

// Empty reports whether the launch names nothing to open or import.
func (l Launch) Empty() bool {
	return len(l.Libraries) == 0 && len(l.Imports) == 0
}

// Resolve makes every relative path absolute against cwd.
func (l Launch) Resolve(cwd string) Launch {
	return Launch{
		Libraries: resolvePaths(cwd, l.Libraries),
		Imports:   resolvePaths(cwd, l.Imports),
	}
}

// Args renders the canonical argv: one --open per library, then one --import
// per import. The value is attached with '=' so paths starting with '-' survive.
func (l Launch) Args() []string {
	args := make([]string, 0, len(l.Libraries)+len(l.Imports))
	for _, path := range l.Libraries {
		args = append(args, "--"+flagOpen+"="+path)
	}
	for _, path := range l.Imports {
		args = append(args, "--"+flagImport+"="+path)
	}
	return args
}

func resolvePaths(cwd string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if !filepath.IsAbs(path) && cwd != "" {
			path = filepath.Join(cwd, path)
		}
		out = append(out, filepath.Clean(path))
	}
	return out
}
