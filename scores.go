/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "sort"

// RankedEntry is one row of the final standings.
type RankedEntry struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// scoreBook stores the awarded score per (round, question, name).
// Unlike answers, scores are last-write-wins so the coordinator can
// correct grading mistakes, including after the game has finished.
type scoreBook struct {
	rounds map[int]map[int]map[string]int
}

func newScoreBook() *scoreBook {
	return &scoreBook{
		rounds: make(map[int]map[int]map[string]int),
	}
}

func (s *scoreBook) award(round, question int, name string, points int) {
	questions, ok := s.rounds[round]
	if !ok {
		questions = make(map[int]map[string]int)
		s.rounds[round] = questions
	}

	scores, ok := questions[question]
	if !ok {
		scores = make(map[string]int)
		questions[question] = scores
	}

	scores[name] = points
}

// totals sums every recorded score per name and ranks the result by
// descending points. names must be the roster in join order: players
// with no scores are included at zero, and ties rank the earlier
// joiner first. The tie-break is deliberate so medal order is stable
// across runs.
func (s *scoreBook) totals(names []string) []RankedEntry {
	sums := make(map[string]int, len(names))

	for _, questions := range s.rounds {
		for _, scores := range questions {
			for name, points := range scores {
				sums[name] += points
			}
		}
	}

	ranking := make([]RankedEntry, 0, len(names))
	for _, name := range names {
		ranking = append(ranking, RankedEntry{
			Name:   name,
			Points: sums[name],
		})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Points > ranking[j].Points
	})

	return ranking
}

// snapshot deep-copies the full score map for broadcast.
func (s *scoreBook) snapshot() map[int]map[int]map[string]int {
	out := make(map[int]map[int]map[string]int, len(s.rounds))

	for round, questions := range s.rounds {
		qc := make(map[int]map[string]int, len(questions))
		for question, scores := range questions {
			sc := make(map[string]int, len(scores))
			for name, points := range scores {
				sc[name] = points
			}
			qc[question] = sc
		}
		out[round] = qc
	}

	return out
}
