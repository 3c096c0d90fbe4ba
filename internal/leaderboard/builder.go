// Package leaderboard ranks activity scores.
package leaderboard

import (
	"sort"

	"github.com/park285/Cheese-Discord-bot/internal/activity"
)

const DefaultSize = 12

// Row is one ranked line of a board.
type Row struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// Standing is a single user's position among all ranked users.
type Standing struct {
	UserID     string
	Ranked     bool
	Rank       int
	Total      int
	Score      int
	TopPercent float64
}

// Build sorts by score descending, keeping input order for equal scores, and
// truncates to topN (DefaultSize when topN <= 0).
func Build(entries []activity.ScoreEntry, topN int) []Row {
	if topN <= 0 {
		topN = DefaultSize
	}
	ranked := rank(entries)
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// StandingOf locates userID in the full ranking.
func StandingOf(entries []activity.ScoreEntry, userID string) Standing {
	ranked := rank(entries)
	st := Standing{UserID: userID, Total: len(ranked)}
	for _, r := range ranked {
		if r.UserID != userID {
			continue
		}
		st.Ranked = true
		st.Rank = r.Rank
		st.Score = r.Score
		st.TopPercent = float64(r.Rank) * 100 / float64(len(ranked))
		break
	}
	return st
}

func rank(entries []activity.ScoreEntry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		if e.Score <= 0 {
			continue
		}
		rows = append(rows, Row{UserID: e.UserID, Score: e.Score})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
