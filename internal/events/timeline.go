package events

import (
	"sort"
	"strings"
	"time"

	"github.com/bissquit/garden-console/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TimelineEntryKind distinguishes timeline rows.
type TimelineEntryKind string

// Timeline entry kinds.
const (
	TimelineUpdate        TimelineEntryKind = "update"
	TimelineServiceChange TimelineEntryKind = "service_change"
	TimelineCreated       TimelineEntryKind = "created"
)

// NamedRef is an id with its display name.
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimelineEntry is one row of an event's public history.
type TimelineEntry struct {
	Kind      TimelineEntryKind `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`

	// update and created entries
	UpdateID          string             `json:"update_id,omitempty"`
	Status            domain.EventStatus `json:"status,omitempty"`
	StatusLabel       string             `json:"status_label,omitempty"`
	Message           string             `json:"message,omitempty"`
	NotifySubscribers bool               `json:"notify_subscribers,omitempty"`

	// service_change entries
	BatchKey  string              `json:"batch_key,omitempty"`
	Legacy    bool                `json:"legacy,omitempty"`
	Action    domain.ChangeAction `json:"action,omitempty"`
	TypeLabel string              `json:"type_label,omitempty"`
	Services  []NamedRef          `json:"services,omitempty"`
	Groups    []NamedRef          `json:"groups,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// StatusLabel renders an event status for display, e.g. "In Progress".
// A Caser is stateful, so each call gets its own.
func StatusLabel(s domain.EventStatus) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// ChangeBatchKey returns the key that groups service change rows into one
// timeline entry. Rows with a batch id group by it. Older rows without one fall
// back to action plus creation time truncated to the second, reported with
// legacy set; two unrelated same-second actions of one kind share that key.
func ChangeBatchKey(c domain.EventServiceChange) (key string, legacy bool) {
	if c.BatchID != nil && *c.BatchID != "" {
		return "batch:" + *c.BatchID, false
	}
	return legacyBatchKey(c), true
}

func legacyBatchKey(c domain.EventServiceChange) string {
	return "legacy:" + string(c.Action) + "|" + c.CreatedAt.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// MergeTimeline merges status updates and service changes into one list,
// newest first, and appends the creation entry last.
//
// Changes sharing a batch key collapse into one entry whose timestamp, action
// and reason come from the batch's first row. Entries with equal timestamps
// keep input order, updates before change batches. The creation entry carries
// the status of the earliest update, or the event's status without updates.
// Inputs are not modified.
func MergeTimeline(
	event *domain.Event,
	updates []domain.EventUpdate,
	changes []domain.EventServiceChange,
	names Names,
) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(updates)+len(changes)+1)

	for _, u := range updates {
		entries = append(entries, TimelineEntry{
			Kind:              TimelineUpdate,
			Timestamp:         u.CreatedAt,
			UpdateID:          u.ID,
			Status:            u.Status,
			StatusLabel:       StatusLabel(u.Status),
			Message:           u.Message,
			NotifySubscribers: u.NotifySubscribers,
		})
	}
	entries = append(entries, batchEntries(changes, names)...)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	initial := event.Status
	if len(updates) > 0 {
		earliest := updates[0]
		for _, u := range updates[1:] {
			if u.CreatedAt.Before(earliest.CreatedAt) {
				earliest = u
			}
		}
		initial = earliest.Status
	}

	return append(entries, TimelineEntry{
		Kind:        TimelineCreated,
		Timestamp:   event.CreatedAt,
		Status:      initial,
		StatusLabel: StatusLabel(initial),
		Message:     event.Description,
	})
}

func batchEntries(changes []domain.EventServiceChange, names Names) []TimelineEntry {
	index := make(map[string]int)
	var entries []TimelineEntry

	for _, c := range changes {
		key, legacy := ChangeBatchKey(c)
		i, ok := index[key]
		if !ok {
			i = len(entries)
			index[key] = i
			entries = append(entries, TimelineEntry{
				Kind:      TimelineServiceChange,
				Timestamp: c.CreatedAt,
				BatchKey:  key,
				Legacy:    legacy,
				Action:    c.Action,
				Reason:    c.Reason,
			})
		}

		e := &entries[i]
		if c.ServiceID != nil {
			e.Services = append(e.Services, NamedRef{ID: *c.ServiceID, Name: names.Service(*c.ServiceID)})
		}
		if c.GroupID != nil {
			e.Groups = append(e.Groups, NamedRef{ID: *c.GroupID, Name: names.Group(*c.GroupID)})
		}
	}

	for i := range entries {
		entries[i].TypeLabel = typeLabel(len(entries[i].Services), len(entries[i].Groups))
	}
	return entries
}

// typeLabel names what a batch touched. A batch whose rows reference neither a
// service nor a group is labelled "item".
func typeLabel(services, groups int) string {
	var noun string
	switch {
	case services+groups == 0:
		return "item"
	case groups == 0:
		noun = "service"
	case services == 0:
		noun = "group"
	default:
		noun = "item"
	}
	if services+groups == 1 {
		return noun
	}
	return noun + "s"
}
