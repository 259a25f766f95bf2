package platform

import (
	"errors"
	"fmt"
	"sync"
)

var ErrMockExec = errors.New("mock exec error")

func newErrorMockExec(errStr string) error {
	return fmt.Errorf("%w : %s", ErrMockExec, errStr)
}

// MockExecClient records every invocation and optionally fails. ExecFn, when
// set, decides per-call behavior for ExecuteCommand/ExecuteWithEnv.
type MockExecClient struct {
	fail        bool
	failMessage string
	mu          sync.Mutex

	Calls            [][]string
	Envs             [][]string
	InteractiveCode  int
	NextPid          int
	StartedProcesses []*MockProcess

	ExecFn func(command string, args ...string) (string, error)
}

func NewMockExecClient(fail bool) *MockExecClient {
	return &MockExecClient{
		fail:        fail,
		failMessage: "exec fail",
		NextPid:     1001,
	}
}

func (c *MockExecClient) record(command string, args ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := append([]string{command}, args...)
	c.Calls = append(c.Calls, call)
	return call
}

// CallCount returns how many commands were recorded.
func (c *MockExecClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// CalledWith reports whether any recorded call contains all the given tokens
// in order.
func (c *MockExecClient) CalledWith(tokens ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.Calls {
		if containsSubsequence(call, tokens) {
			return true
		}
	}
	return false
}

func containsSubsequence(call, tokens []string) bool {
	i := 0
	for _, arg := range call {
		if i < len(tokens) && arg == tokens[i] {
			i++
		}
	}
	return i == len(tokens)
}

func (c *MockExecClient) ExecuteCommand(command string, args ...string) (string, error) {
	c.record(command, args...)
	if c.ExecFn != nil {
		return c.ExecFn(command, args...)
	}
	if c.fail {
		return "", newErrorMockExec(c.failMessage)
	}
	return "", nil
}

func (c *MockExecClient) ExecuteWithEnv(env []string, command string, args ...string) (string, error) {
	c.Envs = append(c.Envs, env)
	return c.ExecuteCommand(command, args...)
}

func (c *MockExecClient) ExecuteInteractive(env []string, command string, args ...string) (int, error) {
	c.Envs = append(c.Envs, env)
	c.record(command, args...)
	if c.fail {
		return -1, newErrorMockExec(c.failMessage)
	}
	return c.InteractiveCode, nil
}

func (c *MockExecClient) StartCommand(command string, args ...string) (Process, error) {
	c.record(command, args...)
	if c.fail {
		return nil, newErrorMockExec(c.failMessage)
	}
	p := &MockProcess{pid: c.NextPid}
	c.NextPid++
	c.StartedProcesses = append(c.StartedProcesses, p)
	return p, nil
}

type MockProcess struct {
	pid    int
	Killed bool
	Waited bool
}

func (p *MockProcess) Pid() int { return p.pid }

func (p *MockProcess) Kill() error {
	p.Killed = true
	return nil
}

func (p *MockProcess) Wait() error {
	p.Waited = true
	if !p.Killed {
		return nil
	}
	return errors.New("signal: killed")
}
