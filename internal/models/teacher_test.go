package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAvailabilityBlocksWednesdayAfternoon(t *testing.T) {
	avail := DefaultAvailability()
	require.Len(t, avail, len(Days))
	assert.True(t, avail.AvailableOn(Monday, Morning))
	assert.True(t, avail.AvailableOn(Wednesday, Morning))
	assert.False(t, avail.AvailableOn(Wednesday, Afternoon))
	assert.True(t, avail.AvailableOn(Saturday, Afternoon))
}

func TestAvailableOnMissingEntriesFallBack(t *testing.T) {
	var avail WeekAvailability
	assert.True(t, avail.AvailableOn(Monday, Afternoon))
	assert.False(t, avail.AvailableOn(Wednesday, Afternoon))

	avail = WeekAvailability{Monday: {Morning: false, Afternoon: true}}
	assert.False(t, avail.AvailableOn(Monday, Morning))
	assert.True(t, avail.AvailableOn(Monday, Afternoon))
	assert.True(t, avail.AvailableOn(Friday, Morning), "unset days stay open")
}

func TestPreferenceForDefaultsToNeutral(t *testing.T) {
	var prefs WeekPreferences
	assert.Equal(t, PreferenceNeutral, prefs.PreferenceFor(Monday, Morning))

	prefs = WeekPreferences{
		Monday: {Morning: PreferenceLike, Afternoon: PreferenceAvoid},
	}
	assert.Equal(t, PreferenceLike, prefs.PreferenceFor(Monday, Morning))
	assert.Equal(t, PreferenceAvoid, prefs.PreferenceFor(Monday, Afternoon))
	assert.Equal(t, PreferenceNeutral, prefs.PreferenceFor(Tuesday, Morning))
}

func TestWeekAvailabilityScanRoundTrip(t *testing.T) {
	original := DefaultAvailability()
	value, err := original.Value()
	require.NoError(t, err)

	var decoded WeekAvailability
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, original, decoded)
}

func TestSessionOverlapsRange(t *testing.T) {
	session := Session{StartSlotIndex: 1, SlotCount: 2}

	assert.True(t, session.OverlapsRange(1, 1))
	assert.True(t, session.OverlapsRange(2, 1))
	assert.True(t, session.OverlapsRange(0, 2))
	assert.True(t, session.OverlapsRange(2, 2))
	assert.False(t, session.OverlapsRange(0, 1))
	assert.False(t, session.OverlapsRange(3, 1))
}
