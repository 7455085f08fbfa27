/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// noAnswer is recorded for any player who never submitted before the
// coordinator moved on.
const noAnswer = "NO ANSWER"

// answerBook stores at most one answer per (round, question, name).
// Writes are first-come: once a real answer lands it is never
// overwritten, and the sentinel is only placed by backfill.
type answerBook struct {
	rounds map[int]map[int]map[string]string
}

func newAnswerBook() *answerBook {
	return &answerBook{
		rounds: make(map[int]map[int]map[string]string),
	}
}

func (b *answerBook) bucket(round, question int) map[string]string {
	questions, ok := b.rounds[round]
	if !ok {
		questions = make(map[int]map[string]string)
		b.rounds[round] = questions
	}

	answers, ok := questions[question]
	if !ok {
		answers = make(map[string]string)
		questions[question] = answers
	}

	return answers
}

// record stores content for (round, question, name) unless an answer
// already exists there. Reports whether the write happened, so a
// duplicate submission is absorbed rather than treated as an error.
func (b *answerBook) record(round, question int, name, content string) bool {
	answers := b.bucket(round, question)

	if _, exists := answers[name]; exists {
		return false
	}

	answers[name] = content

	return true
}

// backfill writes the sentinel for every listed name that has no
// answer at (round, question). Called only when progression leaves a
// question behind.
func (b *answerBook) backfill(round, question int, names []string) {
	answers := b.bucket(round, question)

	for _, name := range names {
		if _, exists := answers[name]; !exists {
			answers[name] = noAnswer
		}
	}
}

// snapshot deep-copies the full answer map for broadcast, so observers
// never share memory with the live book.
func (b *answerBook) snapshot() map[int]map[int]map[string]string {
	out := make(map[int]map[int]map[string]string, len(b.rounds))

	for round, questions := range b.rounds {
		qc := make(map[int]map[string]string, len(questions))
		for question, answers := range questions {
			ac := make(map[string]string, len(answers))
			for name, content := range answers {
				ac[name] = content
			}
			qc[question] = ac
		}
		out[round] = qc
	}

	return out
}
