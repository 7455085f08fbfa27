package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures published notifications for assertions.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	kind string
	msg  any
}

func (r *recorder) publish(kind string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, recordedEvent{kind: kind, msg: msg})
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].kind == kind {
			return r.events[i].msg, true
		}
	}
	return nil, false
}

func testConfig() *Config {
	return &Config{
		bind: "127.0.0.1",
		port: 8080,
	}
}

func newTestRegistry(t *testing.T) (*Registry, *recorder) {
	t.Helper()

	rec := &recorder{}
	return newRegistry(testConfig(), rec), rec
}

// startedSession returns a registry with a created and started session
// and the given players joined under token "token-<name>".
func startedSession(t *testing.T, names ...string) (*Registry, *recorder) {
	t.Helper()

	reg, rec := newTestRegistry(t)
	reg.CreateOrReset()

	for _, name := range names {
		_, err := reg.Join("token-"+name, name)
		require.NoError(t, err)
	}

	require.NoError(t, reg.Start())

	return reg, rec
}

func requireRejectKind(t *testing.T, err error, kind RejectKind) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, kind, asReject(err).Kind)
}

func TestCreateOrResetIssuesPin(t *testing.T) {
	reg, rec := newTestRegistry(t)

	pin := reg.CreateOrReset()
	require.Len(t, pin, 4)

	snap := reg.Snapshot()
	assert.Equal(t, pin, snap.Pin)
	assert.False(t, snap.Started)
	assert.False(t, snap.Finished)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 1, snap.Question)
	assert.Empty(t, snap.Players)

	msg, ok := rec.last(eventSessionCreated)
	require.True(t, ok)
	assert.Equal(t, pin, msg.(SessionCreatedMessage).Pin)
}

func TestResetSupersedesPriorSession(t *testing.T) {
	reg, _ := startedSession(t, "alice", "bob")

	require.NoError(t, reg.SubmitAnswer("token-alice", "alice", "42"))

	old := reg.Snapshot().Pin
	pin := reg.CreateOrReset()

	require.NotEqual(t, old, pin)

	snap := reg.Snapshot()
	assert.False(t, snap.Started)
	assert.Empty(t, snap.Players)
	assert.Empty(t, snap.Answers)
	assert.Empty(t, snap.Scores)
}

func TestStartBeforeCreateRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)

	requireRejectKind(t, reg.Start(), RejectInvalidTransition)
}

func TestStartTwiceRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateOrReset()

	require.NoError(t, reg.Start())
	requireRejectKind(t, reg.Start(), RejectInvalidTransition)
}

func TestStartActivatesFirstQuestion(t *testing.T) {
	reg, rec := newTestRegistry(t)
	reg.CreateOrReset()

	require.NoError(t, reg.Start())

	msg, ok := rec.last(eventProgressChanged)
	require.True(t, ok)
	progress := msg.(ProgressMessage)
	assert.Equal(t, 1, progress.Round)
	assert.Equal(t, 1, progress.Question)
}

func TestAdvanceBeforeStartLeavesPointerUnchanged(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateOrReset()

	requireRejectKind(t, reg.AdvanceQuestion(), RejectInvalidTransition)

	snap := reg.Snapshot()
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 1, snap.Question)
}

func TestAdvanceQuestionBackfillsAndBumps(t *testing.T) {
	reg, rec := startedSession(t, "alice", "bob")

	require.NoError(t, reg.SubmitAnswer("token-alice", "alice", "42"))
	require.NoError(t, reg.AdvanceQuestion())

	snap := reg.Snapshot()
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 2, snap.Question)
	assert.Equal(t, map[string]string{
		"alice": "42",
		"bob":   noAnswer,
	}, snap.Answers[1][1])

	msg, ok := rec.last(eventAnswersChanged)
	require.True(t, ok)
	assert.Equal(t, noAnswer, msg.(AnswersMessage).Answers[1][1]["bob"])
}

func TestAdvanceRoundResetsQuestion(t *testing.T) {
	reg, _ := startedSession(t, "alice")

	require.NoError(t, reg.AdvanceQuestion())
	require.NoError(t, reg.AdvanceQuestion())
	require.NoError(t, reg.AdvanceRound())

	snap := reg.Snapshot()
	assert.Equal(t, 2, snap.Round)
	assert.Equal(t, 1, snap.Question)

	// every question left behind was backfilled
	assert.Equal(t, noAnswer, snap.Answers[1][1]["alice"])
	assert.Equal(t, noAnswer, snap.Answers[1][2]["alice"])
	assert.Equal(t, noAnswer, snap.Answers[1][3]["alice"])
}

func TestBackfillOnlyCoversAlreadyJoined(t *testing.T) {
	reg, _ := startedSession(t, "alice")

	require.NoError(t, reg.AdvanceQuestion())

	_, err := reg.Join("token-carol", "carol")
	require.NoError(t, err)

	snap := reg.Snapshot()
	_, ok := snap.Answers[1][1]["carol"]
	assert.False(t, ok, "carol joined after (1,1) closed and must not appear there")
}

func TestQuestionTextClearedOnAdvance(t *testing.T) {
	reg, rec := startedSession(t, "alice")

	require.NoError(t, reg.SetQuestionText("What is six times seven?"))
	assert.Equal(t, "What is six times seven?", reg.Snapshot().QuestionText)

	require.NoError(t, reg.AdvanceQuestion())
	assert.Empty(t, reg.Snapshot().QuestionText)

	msg, ok := rec.last(eventQuestionTextChanged)
	require.True(t, ok)
	assert.Empty(t, msg.(QuestionTextMessage).Text)
}

func TestSnapshotConsistentAfterAdvance(t *testing.T) {
	reg, _ := startedSession(t, "alice", "bob")

	require.NoError(t, reg.AdvanceRound())

	snap := reg.Snapshot()

	// the pointer and the backfill always move together
	assert.Equal(t, 2, snap.Round)
	assert.Equal(t, 1, snap.Question)
	assert.Len(t, snap.Answers[1][1], 2)
}

func TestJoinReturnsActivePointer(t *testing.T) {
	reg, _ := startedSession(t, "alice")

	require.NoError(t, reg.AdvanceQuestion())

	ack, err := reg.Join("token-bob", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, ack.Round)
	assert.Equal(t, 2, ack.Question)
}

func TestSubmitUnauthorized(t *testing.T) {
	reg, _ := startedSession(t, "alice", "bob")

	// token not registered at all
	requireRejectKind(t, reg.SubmitAnswer("token-mallory", "alice", "42"), RejectUnauthorized)

	// token registered, but claiming someone else's name
	requireRejectKind(t, reg.SubmitAnswer("token-bob", "alice", "42"), RejectUnauthorized)

	assert.Empty(t, reg.Snapshot().Answers)
}

func TestSubmitBeforeStartRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateOrReset()

	_, err := reg.Join("token-alice", "alice")
	require.NoError(t, err)

	requireRejectKind(t, reg.SubmitAnswer("token-alice", "alice", "42"), RejectInvalidTransition)
}

func TestDuplicateSubmitAbsorbed(t *testing.T) {
	reg, rec := startedSession(t, "alice")

	require.NoError(t, reg.SubmitAnswer("token-alice", "alice", "first"))
	before := rec.count(eventAnswersChanged)

	// a retry is not an error, but changes nothing and stays silent
	require.NoError(t, reg.SubmitAnswer("token-alice", "alice", "second"))

	assert.Equal(t, "first", reg.Snapshot().Answers[1][1]["alice"])
	assert.Equal(t, before, rec.count(eventAnswersChanged))
}

func TestFinishPublishesRankingAndClearsPin(t *testing.T) {
	reg, rec := startedSession(t, "alice", "bob")

	require.NoError(t, reg.AwardScore(1, 1, "alice", 3))
	require.NoError(t, reg.AwardScore(1, 1, "bob", 5))
	require.NoError(t, reg.Finish())

	snap := reg.Snapshot()
	assert.Empty(t, snap.Pin)
	assert.True(t, snap.Finished)

	msg, ok := rec.last(eventResultsReady)
	require.True(t, ok)
	assert.Equal(t, []RankedEntry{
		{Name: "bob", Points: 5},
		{Name: "alice", Points: 3},
	}, msg.(ResultsMessage).Ranking)

	// answers and scores stay readable for post-game review
	assert.NotEmpty(t, snap.Scores)
	assert.Equal(t, snap.Ranking, msg.(ResultsMessage).Ranking)
	assert.Equal(t, snap.Ranking, reg.Totals())
}

func TestFinishBeforeStartRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateOrReset()

	requireRejectKind(t, reg.Finish(), RejectInvalidTransition)
}

func TestMutationsAfterFinishRejected(t *testing.T) {
	reg, _ := startedSession(t, "alice")
	require.NoError(t, reg.Finish())

	requireRejectKind(t, reg.Start(), RejectInvalidTransition)
	requireRejectKind(t, reg.AdvanceQuestion(), RejectInvalidTransition)
	requireRejectKind(t, reg.AdvanceRound(), RejectInvalidTransition)
	requireRejectKind(t, reg.Finish(), RejectInvalidTransition)
	requireRejectKind(t, reg.SetQuestionText("too late"), RejectInvalidTransition)
	requireRejectKind(t, reg.SubmitAnswer("token-alice", "alice", "42"), RejectInvalidTransition)

	_, err := reg.Join("token-bob", "bob")
	requireRejectKind(t, err, RejectInvalidTransition)
}

func TestPostFinishScoreCorrectionRecomputesResults(t *testing.T) {
	reg, rec := startedSession(t, "alice", "bob")

	require.NoError(t, reg.AwardScore(1, 1, "alice", 3))
	require.NoError(t, reg.AwardScore(1, 1, "bob", 5))
	require.NoError(t, reg.Finish())

	// the grader spots a mistake after the fact
	require.NoError(t, reg.AwardScore(1, 1, "alice", 9))

	msg, ok := rec.last(eventResultsReady)
	require.True(t, ok)
	assert.Equal(t, []RankedEntry{
		{Name: "alice", Points: 9},
		{Name: "bob", Points: 5},
	}, msg.(ResultsMessage).Ranking)

	// a reset still fully supersedes the finished game
	reg.CreateOrReset()
	assert.Empty(t, reg.Snapshot().Scores)
}

func TestAwardValidation(t *testing.T) {
	reg, _ := startedSession(t, "alice")

	requireRejectKind(t, reg.AwardScore(1, 1, "alice", -1), RejectInvalidArgument)
	requireRejectKind(t, reg.AwardScore(0, 1, "alice", 1), RejectInvalidArgument)
	requireRejectKind(t, reg.AwardScore(1, 0, "alice", 1), RejectInvalidArgument)
	requireRejectKind(t, reg.AwardScore(1, 1, "nobody", 1), RejectInvalidArgument)

	assert.Empty(t, reg.Snapshot().Scores)
}

func TestEndToEndScenario(t *testing.T) {
	reg, rec := newTestRegistry(t)

	pin := reg.CreateOrReset()
	require.NotEmpty(t, pin)

	_, err := reg.Join("token-alice", "alice")
	require.NoError(t, err)
	_, err = reg.Join("token-bob", "bob")
	require.NoError(t, err)

	require.NoError(t, reg.Start())
	require.NoError(t, reg.SubmitAnswer("token-alice", "alice", "42"))
	require.NoError(t, reg.AdvanceQuestion())

	snap := reg.Snapshot()
	assert.Equal(t, "42", snap.Answers[1][1]["alice"])
	assert.Equal(t, noAnswer, snap.Answers[1][1]["bob"])
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 2, snap.Question)

	assert.Equal(t, []string{"alice", "bob"}, snap.Players)
	assert.GreaterOrEqual(t, rec.count(eventProgressChanged), 2)
}
