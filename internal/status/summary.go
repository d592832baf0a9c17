package status

import (
	"github.com/bissquit/garden-console/internal/domain"
)

// Summary is the system-wide banner over a set of services.
type Summary struct {
	Status       domain.ServiceStatus         `json:"status"`
	Message      string                       `json:"message"`
	Total        int                          `json:"total"`
	Counts       map[domain.ServiceStatus]int `json:"counts"`
	ActiveEvents int                          `json:"active_events"`
}

var bannerMessages = map[domain.ServiceStatus]string{
	domain.ServiceStatusOperational:   "All systems operational",
	domain.ServiceStatusMaintenance:   "Scheduled maintenance in progress",
	domain.ServiceStatusDegraded:      "Degraded performance",
	domain.ServiceStatusPartialOutage: "Partial system outage",
	domain.ServiceStatusMajorOutage:   "Major system outage",
}

// Summarize aggregates effective statuses into a banner.
// activeEvents is reported as-is.
func Summarize(services []domain.ServiceWithEffectiveStatus, activeEvents int) (Summary, error) {
	counts := make(map[domain.ServiceStatus]int, len(ranks))
	for _, s := range domain.ServiceStatuses {
		counts[s] = 0
	}

	statuses := make([]domain.ServiceStatus, 0, len(services))
	for _, svc := range services {
		statuses = append(statuses, svc.EffectiveStatus)
	}
	worst, err := WorstCase(statuses)
	if err != nil {
		return Summary{}, err
	}
	for _, s := range statuses {
		counts[s]++
	}

	return Summary{
		Status:       worst,
		Message:      bannerMessages[worst],
		Total:        len(services),
		Counts:       counts,
		ActiveEvents: activeEvents,
	}, nil
}
