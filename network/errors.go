package network

import "errors"

// Fatal causes get their own sentinel so the command layer can map each to a
// stable exit status.
var (
	ErrNamespaceNotFound       = errors.New("namespace does not exist")
	ErrInterfaceNotFound       = errors.New("interface does not exist")
	ErrInterfaceNotInNamespace = errors.New("interface is not present in namespace")
	ErrNotAssigned             = errors.New("interface is not assigned to namespace")
	ErrAlreadyAssigned         = errors.New("interface is already assigned to namespace")
)
