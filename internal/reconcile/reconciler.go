// Package reconcile derives the unified conversation view from the two
// independent relations that can mention a counterparty: direct messages
// and bookings. The merge itself is a pure function over per-source
// digests so the ordering and tie-break rules can be tested without a
// database.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/repository"
)

// MessageSource is the slice of the message store the reconciler needs:
// the latest message per counterparty and the unread tallies.
type MessageSource interface {
	LatestByCounterparty(ctx context.Context, userID uint64) ([]model.MessageDigest, error)
	UnreadByCounterparty(ctx context.Context, userID uint64) (map[uint64]int, error)
}

// BookingSource yields the most recent booking per counterparty.
type BookingSource interface {
	LatestByCounterparty(ctx context.Context, userID uint64) ([]model.BookingDigest, error)
}

// ProfileDirectory batch-resolves display profiles. Unknown ids are
// omitted from the result rather than reported as errors.
type ProfileDirectory interface {
	ResolveProfiles(ctx context.Context, ids []uint64) (map[uint64]model.Profile, error)
}

// placeholderName is rendered when the directory cannot resolve a
// counterparty (deleted or unknown account). The conversation still
// appears; only the display data degrades.
const placeholderName = "Former user"

// Reconciler merges the message store, booking store and identity
// directory into ordered per-user conversation summaries. It holds no
// state of its own and is safe for concurrent use.
type Reconciler struct {
	Messages  MessageSource
	Bookings  BookingSource
	Directory ProfileDirectory
}

// New constructs a Reconciler. All dependencies must be non-nil.
func New(messages MessageSource, bookings BookingSource, directory ProfileDirectory) *Reconciler {
	if messages == nil || bookings == nil || directory == nil {
		panic("nil source passed to reconcile.New")
	}
	return &Reconciler{Messages: messages, Bookings: bookings, Directory: directory}
}

// GetConversations returns one conversation per distinct counterparty
// the user shares at least one message or booking with, ordered by last
// activity descending. Store read failures abort the call with
// repository.ErrStoreUnavailable; an empty result always means the user
// truly has no conversations. Directory failures degrade the display
// fields of the affected entries instead of failing the request.
func (r *Reconciler) GetConversations(ctx context.Context, userID uint64) ([]model.Conversation, error) {
	bookings, err := r.Bookings.LatestByCounterparty(ctx, userID)
	if err != nil {
		return nil, repository.Unavailable(fmt.Errorf("booking digests: %w", err))
	}
	messages, err := r.Messages.LatestByCounterparty(ctx, userID)
	if err != nil {
		return nil, repository.Unavailable(fmt.Errorf("message digests: %w", err))
	}
	unread, err := r.Messages.UnreadByCounterparty(ctx, userID)
	if err != nil {
		return nil, repository.Unavailable(fmt.Errorf("unread counts: %w", err))
	}

	ids := make([]uint64, 0, len(bookings)+len(messages))
	seen := make(map[uint64]struct{}, len(bookings)+len(messages))
	for _, b := range bookings {
		if _, ok := seen[b.CounterpartyID]; !ok {
			seen[b.CounterpartyID] = struct{}{}
			ids = append(ids, b.CounterpartyID)
		}
	}
	for _, m := range messages {
		if _, ok := seen[m.CounterpartyID]; !ok {
			seen[m.CounterpartyID] = struct{}{}
			ids = append(ids, m.CounterpartyID)
		}
	}

	// One batched lookup for every counterparty in the result set. A
	// directory outage degrades every entry to the placeholder rather
	// than failing a read-only call that is otherwise answerable.
	profiles, err := r.Directory.ResolveProfiles(ctx, ids)
	if err != nil {
		log.Printf("reconcile: profile resolution failed for user %d: %v", userID, err)
		profiles = nil
	}

	return Merge(bookings, messages, unread, profiles), nil
}

// Merge combines per-source digests into the final conversation list.
// Booking entries are seeded first so a booking-only relationship is a
// valid conversation; message overlays then claim the last-activity slot
// only when the message is strictly more recent. The rule is "most
// recent event wins" regardless of source; on an exact timestamp tie the
// message wins, since actual communication outranks a status placeholder.
func Merge(bookings []model.BookingDigest, messages []model.MessageDigest, unread map[uint64]int, profiles map[uint64]model.Profile) []model.Conversation {
	byCounterparty := make(map[uint64]*model.Conversation, len(bookings)+len(messages))

	for _, b := range bookings {
		byCounterparty[b.CounterpartyID] = &model.Conversation{
			CounterpartyID:   b.CounterpartyID,
			LastActivityText: bookingActivityText(b),
			LastActivityTime: b.EventAt,
			HasBooking:       true,
			BookingStatus:    b.Status,
		}
	}

	for _, m := range messages {
		conv, ok := byCounterparty[m.CounterpartyID]
		if !ok {
			byCounterparty[m.CounterpartyID] = &model.Conversation{
				CounterpartyID:   m.CounterpartyID,
				LastActivityText: m.Content,
				LastActivityTime: m.SentAt,
			}
			continue
		}
		if !m.SentAt.Before(conv.LastActivityTime) {
			conv.LastActivityText = m.Content
			conv.LastActivityTime = m.SentAt
		}
	}

	out := make([]model.Conversation, 0, len(byCounterparty))
	for id, conv := range byCounterparty {
		conv.UnreadCount = unread[id]
		if p, ok := profiles[id]; ok {
			conv.CounterpartyName = p.Name
			conv.CounterpartyRole = p.Role
		} else {
			conv.CounterpartyName = placeholderName
		}
		out = append(out, *conv)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityTime.Equal(out[j].LastActivityTime) {
			return out[i].LastActivityTime.After(out[j].LastActivityTime)
		}
		return out[i].CounterpartyID < out[j].CounterpartyID
	})
	return out
}

func bookingActivityText(b model.BookingDigest) string {
	return fmt.Sprintf("Booking: %s (%s)", b.Subject, strings.ToLower(string(b.Status)))
}
