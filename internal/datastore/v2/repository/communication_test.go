package repository

import (
	"testing"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunicationRepository_CreateAndList(t *testing.T) {
	db := setupAlertTestDB(t)
	repo := NewCommunicationRepository(db)
	ctx := t.Context()

	for _, recipient := range []string{"admin-1", "admin-2", "admin-1"} {
		require.NoError(t, repo.Create(ctx, &entities.Communication{
			InstitutionID: "inst-a",
			SenderID:      entities.SystemSender,
			RecipientID:   recipient,
			MessageType:   entities.MessageTypeAlert,
			Subject:       "Retard",
			Message:       "Joan ha arribat 20 minuts tard",
			Status:        entities.CommunicationStatusSent,
			Priority:      entities.PriorityHigh,
		}))
	}
	require.NoError(t, repo.Create(ctx, &entities.Communication{
		InstitutionID: "inst-b", SenderID: "u-9", RecipientID: "u-8",
		MessageType: entities.MessageTypeMessage, Status: entities.CommunicationStatusSent,
		Priority: entities.PriorityNormal,
	}))

	items, total, err := repo.ListForInstitution(ctx, CommunicationFilter{InstitutionID: "inst-a"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	for _, c := range items {
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "inst-a", c.InstitutionID)
	}

	_, total, err = repo.ListForInstitution(ctx, CommunicationFilter{InstitutionID: "inst-a", RecipientID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	items, total, err = repo.ListForInstitution(ctx, CommunicationFilter{InstitutionID: "inst-a", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 1)

	_, _, err = repo.ListForInstitution(ctx, CommunicationFilter{})
	assert.Error(t, err)
}

func TestEmployeeRepository(t *testing.T) {
	db := setupAlertTestDB(t)
	repo := NewEmployeeRepository(db)
	ctx := t.Context()

	employees := []*entities.Employee{
		{ID: "emp-1", InstitutionID: "inst-a", FullName: "Joan Puig", Email: "joan@example.org", Role: "employee", Department: "maths", Active: true},
		{ID: "emp-2", InstitutionID: "inst-a", FullName: "Anna Vidal", Email: "anna@example.org", Role: "employee", Department: "maths", Active: true},
		{ID: "emp-3", InstitutionID: "inst-a", FullName: "Pere Soler", Role: "employee", Department: "history", Active: true},
		{ID: "emp-4", InstitutionID: "inst-a", FullName: "Old Timer", Role: "employee", Department: "maths", Active: false},
		{ID: "emp-5", InstitutionID: "inst-b", FullName: "Other School", Role: "employee", Department: "maths", Active: true},
	}
	for _, e := range employees {
		require.NoError(t, repo.SaveEmployee(ctx, e))
	}

	got, err := repo.GetEmployee(ctx, "inst-a", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "joan@example.org", got.Email)

	_, err = repo.GetEmployee(ctx, "inst-b", "emp-1")
	require.ErrorIs(t, err, ErrEmployeeNotFound)

	// Upsert replaces the stored row.
	employees[0].Email = "joan.puig@example.org"
	require.NoError(t, repo.SaveEmployee(ctx, employees[0]))
	got, err = repo.GetEmployee(ctx, "inst-a", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "joan.puig@example.org", got.Email)

	maths, err := repo.ListByDepartment(ctx, "inst-a", "maths")
	require.NoError(t, err)
	require.Len(t, maths, 2)
	assert.Equal(t, "Anna Vidal", maths[0].FullName)

	all, err := repo.ListByDepartment(ctx, "inst-a", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
