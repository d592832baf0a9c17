// Package status ranks service statuses and derives effective statuses from active events.
package status

import (
	"errors"
	"fmt"

	"github.com/bissquit/garden-console/internal/domain"
)

// ErrUnknownStatus is returned for a value outside the five service statuses.
var ErrUnknownStatus = errors.New("unknown service status")

var ranks = map[domain.ServiceStatus]int{
	domain.ServiceStatusOperational:   0,
	domain.ServiceStatusMaintenance:   1,
	domain.ServiceStatusDegraded:      2,
	domain.ServiceStatusPartialOutage: 3,
	domain.ServiceStatusMajorOutage:   4,
}

// Rank returns the severity rank of s, operational being the lowest.
func Rank(s domain.ServiceStatus) (int, error) {
	r, ok := ranks[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return r, nil
}

// WorstCase returns the most severe status in statuses.
// An empty collection yields operational.
func WorstCase(statuses []domain.ServiceStatus) (domain.ServiceStatus, error) {
	worst := domain.ServiceStatusOperational
	worstRank := 0
	for _, s := range statuses {
		r, err := Rank(s)
		if err != nil {
			return "", err
		}
		if r > worstRank {
			worst, worstRank = s, r
		}
	}
	return worst, nil
}

// Worse returns the more severe of a and b.
func Worse(a, b domain.ServiceStatus) (domain.ServiceStatus, error) {
	ra, err := Rank(a)
	if err != nil {
		return "", err
	}
	rb, err := Rank(b)
	if err != nil {
		return "", err
	}
	if rb > ra {
		return b, nil
	}
	return a, nil
}
