// Quizbox session core
//
// One session runs at a time: the coordinator creates it (issuing a
// 4-digit PIN), players join under unique display names, and the
// coordinator walks a round/question pointer forward while players
// submit answers concurrently. Answers are write-once per player and
// question; whatever is missing when the coordinator moves on is
// backfilled with a sentinel, so every question left behind has a
// complete answer set. Scores are awarded per answer and may be
// revised at any point, including after the game has finished.
//
// Every operation below takes the registry mutex, so concurrent
// submissions, advances, and resets resolve to one deterministic
// outcome and no observer ever sees a half-applied advance.
// Notification payloads are assembled while the lock is held and
// handed to the coordinator for asynchronous fan-out, so a slow
// observer can never stall progression.

package main

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"sync"
)

// Registry owns all session state: lifecycle, progression pointer,
// roster, answers, and scores. Nothing outside the registry mutates
// any of it.
type Registry struct {
	cfg    *Config
	notify notifier

	mu           sync.Mutex
	pin          string
	started      bool
	finished     bool
	round        int
	question     int
	questionText string
	roster       *roster
	answers      *answerBook
	scores       *scoreBook
}

func newRegistry(cfg *Config, notify notifier) *Registry {
	return &Registry{
		cfg:      cfg,
		notify:   notify,
		round:    1,
		question: 1,
		roster:   newRoster(),
		answers:  newAnswerBook(),
		scores:   newScoreBook(),
	}
}

// newPin returns a 4-digit numeric session code.
func newPin() string {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	return strconv.Itoa(1000 + int(binary.BigEndian.Uint16(b[:]))%9000)
}

// CreateOrReset discards any existing session and starts a fresh one
// with a new PIN. Observers treat the session_created broadcast as a
// full reset. Returns the new PIN.
func (r *Registry) CreateOrReset() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.pin
	pin := newPin()
	for pin == prior {
		pin = newPin()
	}

	r.pin = pin
	r.started = false
	r.finished = false
	r.round = 1
	r.question = 1
	r.questionText = ""
	r.roster = newRoster()
	r.answers = newAnswerBook()
	r.scores = newScoreBook()

	logf(r.cfg, "QUIZ: Created session %s", pin)

	r.notify.publish(eventSessionCreated, SessionCreatedMessage{
		Type: eventSessionCreated,
		Pin:  pin,
	})

	return pin
}

// Start moves the session from created to running and activates
// question (1,1).
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.activeLocked(); err != nil {
		return err
	}
	if r.started {
		return rejectf(RejectInvalidTransition, "session already started")
	}

	r.started = true

	logf(r.cfg, "QUIZ: Session %s started with %d players", r.pin, r.roster.size())

	r.notify.publish(eventProgressChanged, ProgressMessage{
		Type:     eventProgressChanged,
		Round:    r.round,
		Question: r.question,
	})

	return nil
}

// SetQuestionText stores the prompt for the active question. The text
// is opaque to the session and may be empty.
func (r *Registry) SetQuestionText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.activeLocked(); err != nil {
		return err
	}

	r.questionText = text

	r.notify.publish(eventQuestionTextChanged, QuestionTextMessage{
		Type: eventQuestionTextChanged,
		Text: text,
	})

	return nil
}

// AdvanceQuestion closes out the current question and moves to the
// next one in the same round.
func (r *Registry) AdvanceQuestion() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.advanceLocked(func() {
		r.question++
	})
}

// AdvanceRound closes out the current question and moves to the first
// question of the next round.
func (r *Registry) AdvanceRound() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.advanceLocked(func() {
		r.round++
		r.question = 1
	})
}

// advanceLocked backfills the question being left behind, applies the
// pointer bump, and broadcasts the new position together with the
// backfilled answers. Assumes r.mu is held.
func (r *Registry) advanceLocked(bump func()) error {
	if err := r.runningLocked(); err != nil {
		return err
	}

	r.answers.backfill(r.round, r.question, r.roster.names())
	bump()
	r.questionText = ""

	logf(r.cfg, "QUIZ: Session %s advanced to round %d question %d", r.pin, r.round, r.question)

	r.notify.publish(eventProgressChanged, ProgressMessage{
		Type:     eventProgressChanged,
		Round:    r.round,
		Question: r.question,
	})
	r.notify.publish(eventAnswersChanged, AnswersMessage{
		Type:    eventAnswersChanged,
		Answers: r.answers.snapshot(),
	})
	r.notify.publish(eventQuestionTextChanged, QuestionTextMessage{
		Type: eventQuestionTextChanged,
	})

	return nil
}

// Finish computes the final ranking and clears the PIN. Answers and
// scores stay readable for post-game review, and scores may still be
// corrected afterwards via AwardScore.
func (r *Registry) Finish() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.runningLocked(); err != nil {
		return err
	}

	pin := r.pin
	r.pin = ""
	r.finished = true

	logf(r.cfg, "QUIZ: Session %s finished", pin)

	r.notify.publish(eventResultsReady, ResultsMessage{
		Type:    eventResultsReady,
		Ranking: r.scores.totals(r.roster.names()),
	})

	return nil
}

// Join binds token to name, first come first served. Rejoining with
// the same pair is idempotent so a refreshed client keeps its slot.
// The returned ack carries the active pointer so the client can show
// the right question immediately.
func (r *Registry) Join(token, name string) (JoinedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.activeLocked(); err != nil {
		return JoinedMessage{}, err
	}
	if token == "" || name == "" {
		return JoinedMessage{}, rejectf(RejectInvalidArgument, "a name is required to join")
	}

	created, err := r.roster.join(token, name)
	if err != nil {
		return JoinedMessage{}, err
	}

	if created {
		logf(r.cfg, "QUIZ: Player %q joined session %s", name, r.pin)

		r.notify.publish(eventRosterChanged, RosterMessage{
			Type:    eventRosterChanged,
			Players: r.roster.names(),
		})
	}

	return JoinedMessage{
		Type:     eventJoined,
		Name:     name,
		Round:    r.round,
		Question: r.question,
	}, nil
}

// SubmitAnswer records content for the active question under the
// caller's identity. Duplicate submissions for the same question are
// absorbed without error, so an honest retry after a dropped ack is
// always safe.
func (r *Registry) SubmitAnswer(token, name, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.runningLocked(); err != nil {
		return err
	}

	resolved, ok := r.roster.resolve(token)
	if !ok || resolved != name {
		return rejectf(RejectUnauthorized, "this client is not registered as %q", name)
	}

	if !r.answers.record(r.round, r.question, name, content) {
		return nil
	}

	r.notify.publish(eventAnswersChanged, AnswersMessage{
		Type:    eventAnswersChanged,
		Answers: r.answers.snapshot(),
	})

	return nil
}

// AwardScore records points for one player's answer, overwriting any
// prior award for the same key. Still accepted after finish so the
// coordinator can fix grading mistakes; in that case the standings are
// recomputed and rebroadcast.
func (r *Registry) AwardScore(round, question int, name string, points int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started && !r.finished {
		if r.pin == "" {
			return rejectf(RejectInvalidTransition, "no active session")
		}
		return rejectf(RejectInvalidTransition, "session not started")
	}

	switch {
	case points < 0:
		return rejectf(RejectInvalidArgument, "points must not be negative")
	case round < 1 || question < 1:
		return rejectf(RejectInvalidArgument, "round and question must be positive")
	case !r.roster.bound(name):
		return rejectf(RejectInvalidArgument, "unknown player %q", name)
	}

	r.scores.award(round, question, name, points)

	r.notify.publish(eventScoresChanged, ScoresMessage{
		Type:   eventScoresChanged,
		Scores: r.scores.snapshot(),
	})

	if r.finished {
		r.notify.publish(eventResultsReady, ResultsMessage{
			Type:    eventResultsReady,
			Ranking: r.scores.totals(r.roster.names()),
		})
	}

	return nil
}

// Snapshot returns the full session state for a connecting or
// resynchronizing observer. Maps are deep copies; the caller never
// shares memory with the registry.
func (r *Registry) Snapshot() SnapshotMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := SnapshotMessage{
		Type:         eventSnapshot,
		Pin:          r.pin,
		Started:      r.started,
		Finished:     r.finished,
		Round:        r.round,
		Question:     r.question,
		QuestionText: r.questionText,
		Players:      r.roster.names(),
		Answers:      r.answers.snapshot(),
		Scores:       r.scores.snapshot(),
	}

	if r.finished {
		snap.Ranking = r.scores.totals(r.roster.names())
	}

	return snap
}

// Totals returns the current standings: total points per player,
// descending, ties ranked by join order.
func (r *Registry) Totals() []RankedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scores.totals(r.roster.names())
}

// activeLocked rejects operations when no joinable session exists.
// Assumes r.mu is held.
func (r *Registry) activeLocked() error {
	if r.pin == "" {
		if r.finished {
			return rejectf(RejectInvalidTransition, "session has finished; waiting for a new game")
		}
		return rejectf(RejectInvalidTransition, "no active session")
	}

	return nil
}

// runningLocked rejects operations unless the session is started and
// not yet finished. Assumes r.mu is held.
func (r *Registry) runningLocked() error {
	if err := r.activeLocked(); err != nil {
		return err
	}
	if !r.started {
		return rejectf(RejectInvalidTransition, "session not started")
	}

	return nil
}
