package engine

import (
	"slices"
	"strings"
)

func NewEmptyState() State {
	return State{
		Status: StatusIdle,
		Users:  map[string]User{},
		Votes:  map[string]int{},
	}
}

// RevealAvailable reports whether every current voter has voted and at
// least one voter exists.
func RevealAvailable(s State) bool {
	voters := 0
	for _, u := range s.Users {
		if !u.IsVoter {
			continue
		}
		voters++
		if !u.HasVoted {
			return false
		}
	}
	return voters > 0
}

// AverageScore is the mean over recorded votes only. A voter without a
// recorded vote is excluded, not counted as zero.
func AverageScore(votes map[string]int) float64 {
	if len(votes) == 0 {
		return 0
	}
	sum := 0
	for _, points := range votes {
		sum += points
	}
	return float64(sum) / float64(len(votes))
}

// Roster returns the users sorted by username so broadcast payloads are
// deterministic.
func Roster(s State) []User {
	users := make([]User, 0, len(s.Users))
	for _, u := range s.Users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b User) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
