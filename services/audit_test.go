package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingtg/models"
)

func TestRecordChangeWritesRow(t *testing.T) {
	db := testDB(t)
	audit := NewAudit(nil)
	guest := newGuest(t, db, 101)

	old := "no"
	require.NoError(t, audit.RecordChange(db, guest.ID, "rsvp_status", &old, "yes"))

	var entries []models.ChangeLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "rsvp_status", entries[0].Field)
	assert.Equal(t, "no", *entries[0].OldValue)
	assert.Equal(t, "yes", *entries[0].NewValue)
}

func TestRecordChangeSkipsEqualValues(t *testing.T) {
	db := testDB(t)
	audit := NewAudit(nil)
	guest := newGuest(t, db, 101)

	v := "yes"
	require.NoError(t, audit.RecordChange(db, guest.ID, "rsvp_status", &v, "yes"))
	require.NoError(t, audit.RecordChange(db, guest.ID, "full_name", nil, nil))

	var count int64
	db.Model(&models.ChangeLog{}).Count(&count)
	assert.EqualValues(t, 0, count)
}
