package app

import (
	"sort"

	"quizlive/internal/domain"
)

// Rank derives deterministic standings from the participant set: score
// descending, ties broken by nickname ascending so two computations over the
// same input are bit-identical. Ranks are dense sequential (1,2,3,...) over
// that total order; true score ties still receive distinct rank numbers.
// Only players are ranked: the host drives the game and spectators never
// score.
func Rank(participants map[string]*domain.Participant) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		if p.Role != domain.RolePlayer {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Score:         p.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Nickname != entries[j].Nickname {
			return entries[i].Nickname < entries[j].Nickname
		}
		// Nickname collisions fall back to the id to keep the order total.
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
