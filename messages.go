/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Event kinds, used both as the wire "type" tag and as the coalescing
// key in the broadcast coordinator.
const (
	eventSessionCreated      = "session_created"
	eventRosterChanged       = "roster_changed"
	eventProgressChanged     = "progress_changed"
	eventQuestionTextChanged = "question_text_changed"
	eventAnswersChanged      = "answers_changed"
	eventScoresChanged       = "scores_changed"
	eventResultsReady        = "results_ready"
	eventSnapshot            = "snapshot"
	eventJoined              = "joined"
	eventReject              = "reject"
)

// ClientMessage is the single inbound envelope. Type selects the
// operation; the other fields are populated per type and validated at
// the boundary before reaching the session.
type ClientMessage struct {
	Type     string `json:"type"`               // one of the inbound operations
	Name     string `json:"name,omitempty"`     // join / submit_answer / award_score
	Content  string `json:"content,omitempty"`  // submit_answer (opaque)
	Text     string `json:"text,omitempty"`     // set_question_text
	Round    int    `json:"round,omitempty"`    // award_score
	Question int    `json:"question,omitempty"` // award_score
	Points   *int   `json:"points,omitempty"`   // award_score; pointer so 0 is distinguishable from absent
}

// SessionCreatedMessage announces a fresh session. Clients treat it as
// a full reset and discard any state from the previous game.
type SessionCreatedMessage struct {
	Type string `json:"type"` // "session_created"
	Pin  string `json:"pin"`  // empty once the session has finished
}

// RosterMessage carries the full player list in join order.
type RosterMessage struct {
	Type    string   `json:"type"` // "roster_changed"
	Players []string `json:"players"`
}

// ProgressMessage announces the question now active.
type ProgressMessage struct {
	Type     string `json:"type"` // "progress_changed"
	Round    int    `json:"round"`
	Question int    `json:"question"`
}

// QuestionTextMessage carries the (opaque) prompt for the active
// question. Cleared on every advance.
type QuestionTextMessage struct {
	Type string `json:"type"` // "question_text_changed"
	Text string `json:"text"`
}

// AnswersMessage carries the complete answer map rather than a diff.
// At tens to low hundreds of players this is cheaper than making every
// client reconcile incremental updates.
type AnswersMessage struct {
	Type    string                            `json:"type"` // "answers_changed"
	Answers map[int]map[int]map[string]string `json:"answers"`
}

// ScoresMessage carries the complete score map.
type ScoresMessage struct {
	Type   string                         `json:"type"` // "scores_changed"
	Scores map[int]map[int]map[string]int `json:"scores"`
}

// ResultsMessage carries the final standings, re-sent whenever a score
// is corrected after finish.
type ResultsMessage struct {
	Type    string        `json:"type"` // "results_ready"
	Ranking []RankedEntry `json:"ranking"`
}

// JoinedMessage is sent only to the joining client so it can display
// the active question immediately.
type JoinedMessage struct {
	Type     string `json:"type"` // "joined"
	Name     string `json:"name"`
	Round    int    `json:"round"`
	Question int    `json:"question"`
}

// SnapshotMessage is the full session state, pushed to every observer
// on connect and on request so a reconnecting client never waits for
// the next delta.
type SnapshotMessage struct {
	Type         string                            `json:"type"` // "snapshot"
	Pin          string                            `json:"pin"`
	Started      bool                              `json:"started"`
	Finished     bool                              `json:"finished"`
	Round        int                               `json:"round"`
	Question     int                               `json:"question"`
	QuestionText string                            `json:"question_text"`
	Players      []string                          `json:"players"`
	Answers      map[int]map[int]map[string]string `json:"answers"`
	Scores       map[int]map[int]map[string]int    `json:"scores"`
	Ranking      []RankedEntry                     `json:"ranking,omitempty"` // present once finished
}

// RejectMessage is sent only to the client whose operation was
// refused.
type RejectMessage struct {
	Type    string `json:"type"` // "reject"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newRejectMessage(r *Reject) RejectMessage {
	return RejectMessage{
		Type:    eventReject,
		Kind:    string(r.Kind),
		Message: r.Message,
	}
}
