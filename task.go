package candy

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// lookPath resolves executables; replaced in tests.
var lookPath = exec.LookPath

// Task is a command that can be run with a line handler.
//
// A Task is configured with Env and CurrentDir before it is run and can be
// run any number of times. It is not safe to mutate a Task while a Run is
// in progress.
type Task struct {
	bin         string
	args        []string
	currentDir  string
	envs        map[string]string
	fullCommand string
	maxLine     int
}

// New creates a Task from command text. The text is split on single
// spaces; no quoting or escaping is supported. The first word must name an
// executable found on PATH. The current working directory becomes the
// Task's default directory.
func New(command string) (*Task, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return nil, &Error{Kind: ErrCouldNotFindCurrentDirectory, Task: command, Err: err}
	}

	if command == "" {
		return nil, invalidTask(command, "an empty string is not a command")
	}
	words := strings.Split(command, " ")
	bin := words[0]
	if bin == "" {
		return nil, invalidTask(command, "the command does not start with an executable")
	}

	if _, err := lookPath(bin); err != nil {
		return nil, &Error{
			Kind:   ErrInvalidTask,
			Task:   command,
			Reason: fmt.Sprintf("'%s' is not installed on this machine", bin),
			Err:    err,
		}
	}

	return &Task{
		bin:         bin,
		args:        words[1:],
		currentDir:  currentDir,
		envs:        make(map[string]string),
		fullCommand: command,
	}, nil
}

// Env adds an environment variable for the command. Variables are merged
// over the inherited environment.
func (t *Task) Env(key, value string) *Task {
	t.envs[key] = value
	return t
}

// CurrentDir sets the directory the command runs in.
func (t *Task) CurrentDir(path string) *Task {
	t.currentDir = path
	return t
}

// MaxLine sets the longest line, in bytes, the readers accept. A stream
// that prints a longer line stops being observed; the process is not
// affected. Zero selects the default of 1 MB.
func (t *Task) MaxLine(n int) *Task {
	t.maxLine = n
	return t
}

// Descriptor returns the command text the Task was created with.
func (t *Task) Descriptor() string {
	return t.fullCommand
}

// BashDescriptor returns the Descriptor with the classic "$ " shell prefix.
func (t *Task) BashDescriptor() string {
	return "$ " + t.Descriptor()
}

// Bin returns the executable name.
func (t *Task) Bin() string { return t.bin }

// Args returns a copy of the arguments.
func (t *Task) Args() []string {
	return append([]string(nil), t.args...)
}

// Dir returns the working directory the command will run in.
func (t *Task) Dir() string { return t.currentDir }
