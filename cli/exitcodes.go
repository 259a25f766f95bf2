package cli

import (
	"errors"
	"fmt"

	"github.com/ifnetns/ifnetns/network"
	"github.com/ifnetns/ifnetns/resolvd"
)

// Each fatal cause maps to a stable exit status so callers can branch on it.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitNamespaceNotFound = 10
	ExitInterfaceNotFound = 11
	ExitNotInNamespace    = 12
	ExitNotAssigned       = 13
	ExitAlreadyAssigned   = 14
	ExitDaemonRunning     = 20
	ExitNoDaemon          = 21
)

// ExitStatusError carries a child command's own exit status through the
// cobra error path. It is not a failure of ifnetns itself.
type ExitStatusError struct {
	Code int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// ExitCode maps an error from Execute to the process exit status.
func ExitCode(err error) int {
	var statusErr *ExitStatusError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &statusErr):
		return statusErr.Code
	case errors.Is(err, network.ErrNamespaceNotFound):
		return ExitNamespaceNotFound
	case errors.Is(err, network.ErrInterfaceNotFound):
		return ExitInterfaceNotFound
	case errors.Is(err, network.ErrInterfaceNotInNamespace):
		return ExitNotInNamespace
	case errors.Is(err, network.ErrNotAssigned):
		return ExitNotAssigned
	case errors.Is(err, network.ErrAlreadyAssigned):
		return ExitAlreadyAssigned
	case errors.Is(err, resolvd.ErrAlreadyRunning):
		return ExitDaemonRunning
	case errors.Is(err, resolvd.ErrNotRunning):
		return ExitNoDaemon
	default:
		return ExitFailure
	}
}
