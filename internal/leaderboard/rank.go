// Package leaderboard derives team rankings from per-member commit counters.
package leaderboard

import (
	"slices"
	"time"
)

// Entry is one member's input to a ranking. Entries must be supplied in the
// store's fetch order (join time, then profile ID); ties keep that order.
type Entry struct {
	ProfileID string
	Username  string
	AvatarURL *string
	Role      string
	Commits   *int64
	JoinedAt  time.Time
}

// Standing is a ranked entry. Rank is 1-based and never shared.
type Standing struct {
	Rank      int       `json:"rank"`
	ProfileID string    `json:"profile_id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	Commits   int64     `json:"total_commits"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Standings is an ordered ranking with lookup by profile.
type Standings struct {
	entries []Standing
	index   map[string]int
}

// Rank orders entries by commit count, highest first. Missing counters count
// as zero. The input slice is not modified.
func Rank(entries []Entry) Standings {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		ca, cb := commits(a.Commits), commits(b.Commits)
		switch {
		case ca > cb:
			return -1
		case ca < cb:
			return 1
		default:
			return 0
		}
	})

	out := Standings{
		entries: make([]Standing, len(sorted)),
		index:   make(map[string]int, len(sorted)),
	}
	for i, e := range sorted {
		out.entries[i] = Standing{
			Rank:      i + 1,
			ProfileID: e.ProfileID,
			Username:  e.Username,
			AvatarURL: e.AvatarURL,
			Role:      e.Role,
			Commits:   commits(e.Commits),
			JoinedAt:  e.JoinedAt,
		}
		out.index[e.ProfileID] = i
	}
	return out
}

// Restore rebuilds Standings from a list previously returned by List. Ranks
// are taken as given.
func Restore(ranked []Standing) Standings {
	out := Standings{
		entries: slices.Clone(ranked),
		index:   make(map[string]int, len(ranked)),
	}
	for i, st := range out.entries {
		out.index[st.ProfileID] = i
	}
	return out
}

// List returns the standings in rank order.
func (s Standings) List() []Standing {
	return slices.Clone(s.entries)
}

// Len reports the number of ranked members.
func (s Standings) Len() int {
	return len(s.entries)
}

// Find returns the standing of a profile.
func (s Standings) Find(profileID string) (Standing, bool) {
	i, ok := s.index[profileID]
	if !ok {
		return Standing{}, false
	}
	return s.entries[i], true
}

// Top returns at most n leading standings.
func (s Standings) Top(n int) []Standing {
	if n <= 0 || n >= len(s.entries) {
		return s.List()
	}
	return slices.Clone(s.entries[:n])
}

func commits(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
