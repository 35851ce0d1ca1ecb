package registry

import "fmt"

// maxRatingEntries is the rotating buffer capacity per entity.
const maxRatingEntries = 100

// RatingEntry is a single user's rating of an entity.
type RatingEntry struct {
	User   string `json:"user"`
	Rating int    `json:"rating"`
}

// RatingBuffer is a rotating, per-user rating store with a cached
// average. It is not safe for concurrent use on its own; callers hold
// the owning entity's lock (see the registry store's per-path
// locking).
type RatingBuffer struct {
	Entries []RatingEntry `json:"entries"`
}

// Submit records a rating from user. If user already has an entry, it
// is updated in place without reordering or rotating the buffer. A new
// user is appended; once the buffer exceeds maxRatingEntries the oldest
// entry is dropped.
func (b *RatingBuffer) Submit(user string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrInvalid, rating)
	}
	for i := range b.Entries {
		if b.Entries[i].User == user {
			b.Entries[i].Rating = rating
			return nil
		}
	}
	b.Entries = append(b.Entries, RatingEntry{User: user, Rating: rating})
	if len(b.Entries) > maxRatingEntries {
		b.Entries = b.Entries[len(b.Entries)-maxRatingEntries:]
	}
	return nil
}

// Summary returns the mean rating (0.0 if the buffer is empty) and a
// copy of up to maxRatingEntries entries.
func (b *RatingBuffer) Summary() (float64, []RatingEntry) {
	if len(b.Entries) == 0 {
		return 0.0, nil
	}
	sum := 0
	for _, e := range b.Entries {
		sum += e.Rating
	}
	avg := float64(sum) / float64(len(b.Entries))

	entries := b.Entries
	if len(entries) > maxRatingEntries {
		entries = entries[:maxRatingEntries]
	}
	out := make([]RatingEntry, len(entries))
	copy(out, entries)
	return avg, out
}
