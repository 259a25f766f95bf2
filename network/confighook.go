package network

import (
	"fmt"

	"github.com/ifnetns/ifnetns/platform"
	pkgerrors "github.com/pkg/errors"
)

// NamespaceEnvVar carries the namespace name to hook scripts and commands run
// inside the namespace.
const NamespaceEnvVar = "NETNS_NAME"

// ConfigClient configures an interface's network settings from inside its
// namespace. The shipped DHCP-client wrapper scripts are the usual concrete
// implementation, via ScriptConfig.
type ConfigClient interface {
	ConfigureUp(interfaceName string) error
	ConfigureDown(interfaceName string) error
}

// ConfigClientFor selects the hook implementation: NoopConfig when no script
// is configured, ScriptConfig otherwise.
func ConfigClientFor(namespace, script string, plClient platform.ExecClient) ConfigClient {
	if script == "" {
		return &NoopConfig{}
	}
	return &ScriptConfig{
		namespace: namespace,
		script:    script,
		plClient:  plClient,
	}
}

// HookError is a non-zero exit from a hook script, with enough context to
// diagnose which script and interface failed.
type HookError struct {
	Script    string
	Interface string
	Action    string
	ExitCode  int
	Cause     error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s %s %s exited with status %d: %v",
		e.Script, e.Action, e.Interface, e.ExitCode, e.Cause)
}

func (e *HookError) Unwrap() error {
	return e.Cause
}

// ScriptConfig invokes an external up/down script inside the namespace as
// `script <up|down> <interfaceName>` with the namespace name in the child
// environment. Exit code 0 is the only success condition; stdout/stderr are
// never interpreted.
type ScriptConfig struct {
	namespace string
	script    string
	plClient  platform.ExecClient
}

func (c *ScriptConfig) ConfigureUp(interfaceName string) error {
	return c.invoke("up", interfaceName)
}

func (c *ScriptConfig) ConfigureDown(interfaceName string) error {
	return c.invoke("down", interfaceName)
}

func (c *ScriptConfig) invoke(action, interfaceName string) error {
	env := []string{NamespaceEnvVar + "=" + c.namespace}
	_, err := c.plClient.ExecuteWithEnv(env,
		"ip", "netns", "exec", c.namespace, c.script, action, interfaceName)
	if err != nil {
		return &HookError{
			Script:    c.script,
			Interface: interfaceName,
			Action:    action,
			ExitCode:  platform.ExitStatus(pkgerrors.Cause(err)),
			Cause:     err,
		}
	}
	return nil
}

// NoopConfig is the hook for interfaces moved without a script; they stay
// unconfigured.
type NoopConfig struct{}

func (NoopConfig) ConfigureUp(string) error   { return nil }
func (NoopConfig) ConfigureDown(string) error { return nil }
