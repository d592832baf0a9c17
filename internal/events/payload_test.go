package events

import (
	"encoding/json"
	"testing"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUpdatePayload_ReasonRequiresMembershipChange(t *testing.T) {
	statusOnly := ChangeSet{
		ServiceUpdates: []domain.AffectedService{{ServiceID: "api", Status: domain.ServiceStatusMajorOutage}},
	}

	_, err := NewUpdatePayload(domain.EventStatusIdentified, "Root cause found", false, statusOnly, "escalated")
	require.ErrorIs(t, err, ErrReasonNotAllowed)

	p, err := NewUpdatePayload(domain.EventStatusIdentified, "Root cause found", false, statusOnly, "")
	require.NoError(t, err)
	assert.Empty(t, p.Reason)

	withRemoval := ChangeSet{RemoveServiceIDs: []string{"api"}}
	p, err = NewUpdatePayload(domain.EventStatusIdentified, "API recovered", true, withRemoval, "  recovered  ")
	require.NoError(t, err)
	assert.Equal(t, "recovered", p.Reason)
	assert.True(t, p.NotifySubscribers)
}

func TestNewUpdatePayload_Validation(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.EventStatus
		message string
		cs      ChangeSet
	}{
		{name: "missing message", status: domain.EventStatusMonitoring},
		{name: "unknown event status", status: "paused", message: "x"},
		{
			name:    "bad service status",
			status:  domain.EventStatusMonitoring,
			message: "x",
			cs:      ChangeSet{AddServices: []domain.AffectedService{{ServiceID: "api", Status: "bad"}}},
		},
		{
			name:    "empty removal id",
			status:  domain.EventStatusMonitoring,
			message: "x",
			cs:      ChangeSet{RemoveServiceIDs: []string{""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUpdatePayload(tt.status, tt.message, false, tt.cs, "")
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
		})
	}
}

func TestToPayload_DropsStaleReason(t *testing.T) {
	state := NewEditState([]CurrentService{{ServiceID: "api", Status: domain.ServiceStatusDegraded}})
	state = mustApply(t, state,
		AddService("db", domain.ServiceStatusDegraded),
		SetReason("db is affected too"),
		DropAddedService("db"),
		SetStatus("api", domain.ServiceStatusMajorOutage),
	)

	cs, err := Reconcile(state, nil)
	require.NoError(t, err)

	p, err := ToPayload(state, cs, domain.EventStatusIdentified, "Escalating", false)
	require.NoError(t, err)
	assert.Empty(t, p.Reason)
	assert.Len(t, p.ServiceUpdates, 1)
}

func TestToPayload_KeepsReasonWithAdditions(t *testing.T) {
	state := mustApply(t, NewEditState(nil),
		AddGroup("core", domain.ServiceStatusMajorOutage),
		SetReason("whole core cluster down"),
	)

	cs, err := Reconcile(state, map[string][]string{"core": {"api", "db"}})
	require.NoError(t, err)

	p, err := ToPayload(state, cs, domain.EventStatusInvestigating, "Core down", true)
	require.NoError(t, err)
	assert.Equal(t, "whole core cluster down", p.Reason)
	assert.Len(t, p.AddServices, 2)
	assert.Len(t, p.AddGroups, 1)
}

func TestUpdatePayload_JSONOmitsEmptyOptionalFields(t *testing.T) {
	p, err := NewUpdatePayload(domain.EventStatusMonitoring, "Fix deployed", false, ChangeSet{}, "")
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Equal(t, "monitoring", fields["status"])
	assert.Equal(t, "Fix deployed", fields["message"])
	assert.Equal(t, false, fields["notify_subscribers"])
	for _, key := range []string{"service_updates", "add_services", "add_groups", "remove_service_ids", "reason"} {
		assert.NotContains(t, fields, key)
	}
}

func TestDraft_ToEdits(t *testing.T) {
	d := Draft{
		Status:           domain.EventStatusIdentified,
		Message:          "m",
		SetStatuses:      []domain.AffectedService{{ServiceID: "api", Status: domain.ServiceStatusMajorOutage}},
		RemoveServiceIDs: []string{"db"},
		AddServices:      []domain.AffectedService{{ServiceID: "cdn", Status: domain.ServiceStatusDegraded}},
		AddGroups:        []domain.AffectedGroup{{GroupID: "core", Status: domain.ServiceStatusDegraded}},
		Reason:           "r",
		Edits:            []Edit{UnmarkRemoved("db")},
	}

	assert.Equal(t, []Edit{
		SetStatus("api", domain.ServiceStatusMajorOutage),
		MarkRemoved("db"),
		AddService("cdn", domain.ServiceStatusDegraded),
		AddGroup("core", domain.ServiceStatusDegraded),
		SetReason("r"),
		UnmarkRemoved("db"),
	}, d.ToEdits())
}
