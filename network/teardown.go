package network

import (
	"fmt"

	"github.com/ifnetns/ifnetns/log"
)

// TeardownResult accumulates sub-failures from best-effort teardown. Every
// teardown step runs to completion regardless of earlier failures; callers
// inspect Warnings afterward.
type TeardownResult struct {
	Warnings []error
}

func (r *TeardownResult) warnf(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	log.Warnf("%v", err)
	r.Warnings = append(r.Warnings, err)
}

func (r *TeardownResult) merge(other *TeardownResult) {
	if other != nil {
		r.Warnings = append(r.Warnings, other.Warnings...)
	}
}
