package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/repository"
)

type fakeMessages struct {
	latest    []model.MessageDigest
	unread    map[uint64]int
	latestErr error
	unreadErr error
}

func (f *fakeMessages) LatestByCounterparty(ctx context.Context, userID uint64) ([]model.MessageDigest, error) {
	return f.latest, f.latestErr
}

func (f *fakeMessages) UnreadByCounterparty(ctx context.Context, userID uint64) (map[uint64]int, error) {
	return f.unread, f.unreadErr
}

type fakeBookings struct {
	latest []model.BookingDigest
	err    error
}

func (f *fakeBookings) LatestByCounterparty(ctx context.Context, userID uint64) ([]model.BookingDigest, error) {
	return f.latest, f.err
}

type fakeDirectory struct {
	profiles map[uint64]model.Profile
	err      error
}

func (f *fakeDirectory) ResolveProfiles(ctx context.Context, ids []uint64) (map[uint64]model.Profile, error) {
	return f.profiles, f.err
}

func at(minute int) time.Time {
	return time.Date(2025, 6, 1, 12, minute, 0, 0, time.UTC)
}

func TestGetConversations_BookingOnlyCounterpartyIsVisible(t *testing.T) {
	r := New(
		&fakeMessages{},
		&fakeBookings{latest: []model.BookingDigest{
			{CounterpartyID: 7, BookingID: 1, Subject: "Algebra", Status: model.StatusPending, EventAt: at(0)},
		}},
		&fakeDirectory{profiles: map[uint64]model.Profile{
			7: {ID: 7, Name: "Tina Tutor", Role: model.RoleTutor},
		}},
	)

	convs, err := r.GetConversations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, uint64(7), convs[0].CounterpartyID)
	assert.Equal(t, "Tina Tutor", convs[0].CounterpartyName)
	assert.True(t, convs[0].HasBooking)
	assert.Equal(t, model.StatusPending, convs[0].BookingStatus)
	assert.Equal(t, "Booking: Algebra (pending)", convs[0].LastActivityText)
	assert.Zero(t, convs[0].UnreadCount)
}

func TestMerge_NoDuplicateWhenBothSourcesMentionCounterparty(t *testing.T) {
	bookings := []model.BookingDigest{
		{CounterpartyID: 7, Subject: "Algebra", Status: model.StatusAccepted, EventAt: at(0)},
	}
	messages := []model.MessageDigest{
		{CounterpartyID: 7, MessageID: 10, Content: "see you then", SentAt: at(5)},
	}

	convs := Merge(bookings, messages, nil, nil)
	require.Len(t, convs, 1)
	assert.Equal(t, "see you then", convs[0].LastActivityText)
	assert.Equal(t, at(5), convs[0].LastActivityTime)
	// The booking context survives even though the message won the slot.
	assert.True(t, convs[0].HasBooking)
	assert.Equal(t, model.StatusAccepted, convs[0].BookingStatus)
}

func TestMerge_NewerBookingEventOutranksOlderMessage(t *testing.T) {
	// An accepted booking updated after the last message must keep the
	// last-activity slot: the rule is most recent event wins, not
	// messages always win.
	bookings := []model.BookingDigest{
		{CounterpartyID: 7, Subject: "Algebra", Status: model.StatusAccepted, EventAt: at(10)},
	}
	messages := []model.MessageDigest{
		{CounterpartyID: 7, Content: "hello", SentAt: at(3)},
	}

	convs := Merge(bookings, messages, nil, nil)
	require.Len(t, convs, 1)
	assert.Equal(t, "Booking: Algebra (accepted)", convs[0].LastActivityText)
	assert.Equal(t, at(10), convs[0].LastActivityTime)
}

func TestMerge_MessageWinsExactTimestampTie(t *testing.T) {
	bookings := []model.BookingDigest{
		{CounterpartyID: 7, Subject: "Algebra", Status: model.StatusPending, EventAt: at(4)},
	}
	messages := []model.MessageDigest{
		{CounterpartyID: 7, Content: "same instant", SentAt: at(4)},
	}

	convs := Merge(bookings, messages, nil, nil)
	require.Len(t, convs, 1)
	assert.Equal(t, "same instant", convs[0].LastActivityText)
}

func TestMerge_UnreadCountIndependentOfActivitySource(t *testing.T) {
	// Booking occupies the last-activity slot; unread messages from the
	// same counterparty must still be counted.
	bookings := []model.BookingDigest{
		{CounterpartyID: 7, Subject: "Algebra", Status: model.StatusAccepted, EventAt: at(20)},
	}
	messages := []model.MessageDigest{
		{CounterpartyID: 7, Content: "older message", SentAt: at(1)},
	}
	unread := map[uint64]int{7: 3}

	convs := Merge(bookings, messages, unread, nil)
	require.Len(t, convs, 1)
	assert.Equal(t, "Booking: Algebra (accepted)", convs[0].LastActivityText)
	assert.Equal(t, 3, convs[0].UnreadCount)
}

func TestMerge_SortsDescendingByLastActivity(t *testing.T) {
	bookings := []model.BookingDigest{
		{CounterpartyID: 1, Subject: "Math", Status: model.StatusPending, EventAt: at(1)},
		{CounterpartyID: 2, Subject: "Physics", Status: model.StatusPending, EventAt: at(9)},
	}
	messages := []model.MessageDigest{
		{CounterpartyID: 3, Content: "mid", SentAt: at(5)},
	}

	convs := Merge(bookings, messages, nil, nil)
	require.Len(t, convs, 3)
	assert.Equal(t, uint64(2), convs[0].CounterpartyID)
	assert.Equal(t, uint64(3), convs[1].CounterpartyID)
	assert.Equal(t, uint64(1), convs[2].CounterpartyID)
}

func TestMerge_NoOrphanEntries(t *testing.T) {
	convs := Merge(nil, nil, map[uint64]int{42: 5}, map[uint64]model.Profile{
		42: {ID: 42, Name: "Ghost"},
	})
	// A counterparty with neither a message thread nor a booking never
	// appears, whatever stray data the other inputs carry.
	assert.Empty(t, convs)
}

func TestMerge_UnresolvedProfileGetsPlaceholder(t *testing.T) {
	bookings := []model.BookingDigest{
		{CounterpartyID: 7, Subject: "Algebra", Status: model.StatusPending, EventAt: at(0)},
		{CounterpartyID: 8, Subject: "Chemistry", Status: model.StatusPending, EventAt: at(1)},
	}
	profiles := map[uint64]model.Profile{
		8: {ID: 8, Name: "Known Tutor", Role: model.RoleTutor},
	}

	convs := Merge(bookings, nil, nil, profiles)
	require.Len(t, convs, 2)
	assert.Equal(t, "Known Tutor", convs[0].CounterpartyName)
	assert.Equal(t, placeholderName, convs[1].CounterpartyName)
	assert.Empty(t, convs[1].CounterpartyRole)
}

func TestGetConversations_DirectoryFailureDegradesInsteadOfFailing(t *testing.T) {
	r := New(
		&fakeMessages{latest: []model.MessageDigest{
			{CounterpartyID: 7, Content: "hi", SentAt: at(2)},
		}},
		&fakeBookings{},
		&fakeDirectory{err: errors.New("directory down")},
	)

	convs, err := r.GetConversations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, placeholderName, convs[0].CounterpartyName)
}

func TestGetConversations_StoreFailureIsStoreUnavailable(t *testing.T) {
	cases := []struct {
		name string
		msgs *fakeMessages
		bks  *fakeBookings
	}{
		{"booking store down", &fakeMessages{}, &fakeBookings{err: errors.New("conn refused")}},
		{"message store down", &fakeMessages{latestErr: errors.New("conn refused")}, &fakeBookings{}},
		{"unread query down", &fakeMessages{unreadErr: errors.New("conn refused")}, &fakeBookings{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(tc.msgs, tc.bks, &fakeDirectory{})
			convs, err := r.GetConversations(context.Background(), 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, repository.ErrStoreUnavailable))
			assert.Nil(t, convs)
		})
	}
}

func TestGetConversations_EmptyMeansTrulyEmpty(t *testing.T) {
	r := New(&fakeMessages{}, &fakeBookings{}, &fakeDirectory{})
	convs, err := r.GetConversations(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, convs)
}
