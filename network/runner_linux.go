package network

import (
	"errors"
	"fmt"

	"github.com/ifnetns/ifnetns/log"
	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/platform"
)

var errRunner = errors.New("Runner Error")

func newErrorRunner(errStr string) error {
	return fmt.Errorf("%w : %s", errRunner, errStr)
}

// Runner executes arbitrary commands inside a namespace, optionally dropping
// to a named user, with the namespace name exposed in the child environment.
type Runner struct {
	netnsClient netns.NetnsInterface
	plClient    platform.ExecClient
}

func NewRunner(netnsClient netns.NetnsInterface, plClient platform.ExecClient) *Runner {
	return &Runner{
		netnsClient: netnsClient,
		plClient:    plClient,
	}
}

// Run returns the command's own exit status. A non-zero exit is the
// command's business, reported as a warning, never an executor error. A
// missing namespace is fatal.
func (r *Runner) Run(ns, user string, command []string) (int, error) {
	exists, err := namespaceExists(r.netnsClient, ns)
	if err != nil {
		return -1, newErrorRunner(err.Error())
	}
	if !exists {
		return -1, fmt.Errorf("%w : %s", ErrNamespaceNotFound, ns)
	}
	if len(command) == 0 {
		return -1, newErrorRunner("no command given")
	}

	args := []string{"netns", "exec", ns}
	if user != "" {
		log.Printf("Running in %s as %s: %v", ns, user, command)
		args = append(args, "sudo", "-E", "-u", user, "--")
	} else {
		log.Printf("Running in %s: %v", ns, command)
	}
	args = append(args, command...)

	env := []string{NamespaceEnvVar + "=" + ns}
	code, err := r.plClient.ExecuteInteractive(env, "ip", args...)
	if err != nil {
		return -1, newErrorRunner(err.Error())
	}
	if code != 0 {
		log.Warnf("Command exited with status %d", code)
	}
	return code, nil
}
