// Package platform abstracts external process execution so components can be
// tested against a mock instead of the host.
package platform

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Process is a handle to a command started detached from the caller.
type Process interface {
	Pid() int
	Kill() error
	Wait() error
}

// ExecClient runs external commands.
type ExecClient interface {
	// ExecuteCommand runs the command to completion and returns its combined
	// output.
	ExecuteCommand(command string, args ...string) (string, error)
	// ExecuteWithEnv is ExecuteCommand with extra environment entries
	// ("KEY=value") appended to the inherited environment.
	ExecuteWithEnv(env []string, command string, args ...string) (string, error)
	// ExecuteInteractive runs the command with the caller's stdio attached and
	// returns the child's exit code.
	ExecuteInteractive(env []string, command string, args ...string) (int, error)
	// StartCommand starts the command without waiting for it.
	StartCommand(command string, args ...string) (Process, error)
}

type OSExecClient struct{}

func NewExecClient() *OSExecClient {
	return &OSExecClient{}
}

func (c *OSExecClient) ExecuteCommand(command string, args ...string) (string, error) {
	return c.ExecuteWithEnv(nil, command, args...)
}

func (c *OSExecClient) ExecuteWithEnv(env []string, command string, args ...string) (string, error) {
	cmd := exec.Command(command, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), pkgerrors.Wrapf(err, "%s %s failed, output:%s",
			command, strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (c *OSExecClient) ExecuteInteractive(env []string, command string, args ...string) (int, error) {
	cmd := exec.Command(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if code := ExitStatus(err); code >= 0 {
		return code, nil
	}
	return -1, pkgerrors.Wrapf(err, "failed to run %s", command)
}

func (c *OSExecClient) StartCommand(command string, args ...string) (Process, error) {
	cmd := exec.Command(command, args...)
	if err := cmd.Start(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to start %s", command)
	}
	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *osProcess) Wait() error {
	return p.cmd.Wait()
}

// ExitStatus extracts the child exit code from an exec error, or -1 when the
// error does not carry one.
func ExitStatus(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
