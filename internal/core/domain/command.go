package domain

import (
	"fmt"

	shellquote "github.com/kballard/go-shellquote"
)

// Command represents the child process a dispatch will run
type Command struct {
	executable string
	args       []string
}

// NewCommand creates a new Command value object
func NewCommand(executable string, args []string) (Command, error) {
	if executable == "" {
		return Command{}, fmt.Errorf("executable cannot be empty")
	}

	return Command{
		executable: executable,
		args:       append([]string(nil), args...), // Copy slice
	}, nil
}

// Executable returns the command executable
func (c Command) Executable() string {
	return c.executable
}

// Args returns a copy of the command arguments
func (c Command) Args() []string {
	return append([]string(nil), c.args...)
}

// FullCommandLine returns the complete command line including executable and args
func (c Command) FullCommandLine() []string {
	result := make([]string, 0, len(c.args)+1)
	result = append(result, c.executable)
	result = append(result, c.args...)
	return result
}

// String returns the command line quoted for a POSIX shell
func (c Command) String() string {
	return shellquote.Join(c.FullCommandLine()...)
}

// Prepend returns a new Command running prefix in front of the current command line,
// as when a script is handed to its interpreter.
func (c Command) Prepend(prefix ...string) Command {
	if len(prefix) == 0 {
		return c.clone()
	}
	next := c.clone()
	next.executable = prefix[0]
	next.args = append(append(append([]string(nil), prefix[1:]...), c.executable), c.args...)
	return next
}

func (c Command) clone() Command {
	return Command{
		executable: c.executable,
		args:       append([]string(nil), c.args...),
	}
}
