package process

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// InterpreterResolver finds the Python interpreter used to run script entrypoints.
// An explicit command line from configuration wins over searching PATH.
type InterpreterResolver struct {
	python   string
	lookPath func(string) (string, error)
}

// NewInterpreterResolver creates a resolver. python is a shell-quoted command
// line such as "py -3" and may be empty.
func NewInterpreterResolver(python string) *InterpreterResolver {
	return &InterpreterResolver{python: python, lookPath: exec.LookPath}
}

// Resolve returns the argv prefix that runs a script of the given kind
func (r *InterpreterResolver) Resolve(kind string) ([]string, error) {
	if kind != domain.InterpreterPython {
		return nil, fmt.Errorf("%w: unsupported interpreter %q", domain.ErrInterpreterNotFound, kind)
	}

	if strings.TrimSpace(r.python) != "" {
		argv, err := shellquote.Split(r.python)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid python command %q: %v", domain.ErrInterpreterNotFound, r.python, err)
		}
		resolved, err := r.lookPath(argv[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInterpreterNotFound, argv[0], err)
		}
		return append([]string{resolved}, argv[1:]...), nil
	}

	for _, candidate := range pythonCandidates() {
		if resolved, err := r.lookPath(candidate[0]); err == nil {
			return append([]string{resolved}, candidate[1:]...), nil
		}
	}
	return nil, fmt.Errorf("%w: no python3 or python on PATH", domain.ErrInterpreterNotFound)
}

func pythonCandidates() [][]string {
	candidates := [][]string{{"python3"}, {"python"}}
	if runtime.GOOS == "windows" {
		candidates = append(candidates, []string{"py", "-3"})
	}
	return candidates
}

var _ ports.InterpreterResolver = (*InterpreterResolver)(nil)
