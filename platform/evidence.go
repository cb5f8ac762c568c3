package platform

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/afero"
)

// DefaultCommandTimeout bounds each command run by a rule.
const DefaultCommandTimeout = 3 * time.Second

// pipeGrace is how long a cancelled command may keep its output open.
// Children of a killed shell can hold the pipe indefinitely.
const pipeGrace = 100 * time.Millisecond

// CommandRunner runs a command line and returns its standard output.
type CommandRunner interface {
	Output(ctx context.Context, command string) ([]byte, error)
}

// shellMeta marks command lines that need a shell (pipes, redirects ...).
const shellMeta = "|&;<>()$`*?~\n"

// ExecRunner runs commands on the host.  Simple command lines are split and
// executed directly; anything with shell syntax goes through Shell -c.
type ExecRunner struct {
	Shell string // default /bin/sh
}

// Output runs command and returns its standard output.  Once ctx is done the
// process is killed and Output returns within a short grace period, even if
// pipeline children are still running.
func (r ExecRunner) Output(ctx context.Context, command string) ([]byte, error) {
	var cmd *exec.Cmd
	if strings.ContainsAny(command, shellMeta) {
		sh := r.Shell
		if sh == "" {
			sh = "/bin/sh"
		}
		cmd = exec.CommandContext(ctx, sh, "-c", command)
	} else {
		args, err := shlex.Split(command)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, errors.New("empty command")
		}
		cmd = exec.CommandContext(ctx, args[0], args[1:]...)
	}
	cmd.WaitDelay = pipeGrace
	return cmd.Output()
}

// Evidence is what identification rules inspect: a filesystem and a way to
// run commands.  Tests use an afero.MemMapFs and a scripted runner.
type Evidence struct {
	FS             afero.Fs
	Runner         CommandRunner
	CommandTimeout time.Duration
}

// HostEvidence reads the real filesystem and runs real commands.
func HostEvidence() Evidence {
	return Evidence{
		FS:             afero.NewOsFs(),
		Runner:         ExecRunner{},
		CommandTimeout: DefaultCommandTimeout,
	}
}

func (e Evidence) fs() afero.Fs {
	if e.FS == nil {
		return afero.NewOsFs()
	}
	return e.FS
}

// ReadText returns the file contents with NUL bytes removed.  Device tree
// strings are NUL terminated.
func (e Evidence) ReadText(path string) (string, error) {
	b, err := afero.ReadFile(e.fs(), path)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(b), "\x00", ""), nil
}

// RunCommand runs command with the configured timeout and returns its
// trimmed standard output.  A non-zero exit is an error.
func (e Evidence) RunCommand(ctx context.Context, command string) (string, error) {
	timeout := e.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := runner.Output(ctx, command)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DevEntries lists the names under /dev.
func (e Evidence) DevEntries() ([]string, error) {
	infos, err := afero.ReadDir(e.fs(), "/dev")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names, nil
}
