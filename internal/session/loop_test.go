package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/conversation"
	"github.com/ent0n29/aide/internal/intent"
	"github.com/ent0n29/aide/internal/store"
	"github.com/ent0n29/aide/internal/voice"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type echoDispatcher struct {
	mu     sync.Mutex
	inputs []string
}

func (d *echoDispatcher) Dispatch(_ context.Context, input string) intent.Reply {
	d.mu.Lock()
	d.inputs = append(d.inputs, input)
	d.mu.Unlock()
	if input == "bye" {
		return intent.Reply{Text: intent.FarewellText, Intent: intent.IntentQuit, Quit: true}
	}
	if input == "boom" {
		panic("exploded")
	}
	return intent.Reply{Text: "echo: " + input, Intent: "echo"}
}

func (d *echoDispatcher) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.inputs...)
}

var morning = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestLoop(src voice.Source, sink voice.Sink, d Dispatcher, rec Recorder) *Loop {
	return NewLoop(Options{
		Source:        src,
		Sink:          sink,
		Dispatcher:    d,
		Log:           rec,
		AssistantName: "Aide",
		UserName:      "Ada",
		WakeWord:      "aide",
		MaxSilence:    3,
		Logger:        zap.NewNop(),
		Now:           func() time.Time { return morning },
		Pick:          func(int) int { return 0 },
	})
}

func TestGreetingByHour(t *testing.T) {
	first := func(int) int { return 0 }
	cases := []struct {
		hour int
		want string
	}{
		{9, "Good morning"},
		{13, "Good afternoon"},
		{18, "Good evening"},
		{22, "Good night"},
		{2, "You're up late"},
	}
	for _, tc := range cases {
		now := time.Date(2026, 1, 1, tc.hour, 0, 0, 0, time.UTC)
		got := Greeting(now, "Ada", "Aide", first)
		assert.Equal(t, tc.want+", Ada! I'm Aide, your personal assistant. How can I help you today?", got)
	}
}

func TestLoopSilencePromptOnceThenReset(t *testing.T) {
	sink := voice.NewRecorder()
	d := &echoDispatcher{}
	loop := newTestLoop(voice.NewScript("", "", "", "", "", "bye"), sink, d, nil)

	require.NoError(t, loop.Run(context.Background()))

	texts := sink.Texts()
	prompts := 0
	for _, text := range texts {
		if text == SilencePrompt {
			prompts++
		}
	}
	assert.Equal(t, 1, prompts)
	assert.Equal(t, intent.FarewellText, texts[len(texts)-1])
	assert.Equal(t, StateShutdown, loop.State())
	assert.Equal(t, 0, loop.Silence())
}

func TestLoopSilenceCounterResetsOnInput(t *testing.T) {
	sink := voice.NewRecorder()
	loop := newTestLoop(voice.NewScript("", "", "hello", "", "", "bye"), sink, &echoDispatcher{}, nil)

	require.NoError(t, loop.Run(context.Background()))
	assert.NotContains(t, sink.Texts(), SilencePrompt)
}

func TestLoopStripsWakeWord(t *testing.T) {
	sink := voice.NewRecorder()
	d := &echoDispatcher{}
	loop := newTestLoop(voice.NewScript("Aide, what time is it?", "aide", "bye"), sink, d, nil)

	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, []string{"what time is it", "bye"}, d.seen())
	texts := sink.Texts()
	assert.Contains(t, texts, WakePrompt)
	assert.True(t, strings.HasPrefix(texts[0], "Good morning, Ada!"))
}

func TestLoopQuitReturnsWithoutInterruptFarewell(t *testing.T) {
	sink := voice.NewRecorder()
	loop := newTestLoop(voice.NewScript("bye", "never read"), sink, &echoDispatcher{}, nil)

	require.NoError(t, loop.Run(context.Background()))

	texts := sink.Texts()
	assert.NotContains(t, texts, InterruptFarewell)
	assert.Equal(t, intent.FarewellText, texts[len(texts)-1])
}

func TestLoopCancelledSaysInterruptFarewell(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := voice.NewRecorder()
	loop := newTestLoop(voice.NewScript("hello"), sink, &echoDispatcher{}, nil)

	require.NoError(t, loop.Run(ctx))

	texts := sink.Texts()
	require.NotEmpty(t, texts)
	assert.Equal(t, InterruptFarewell, texts[len(texts)-1])
	assert.Equal(t, StateShutdown, loop.State())
}

func TestLoopSourceExhaustedEndsSession(t *testing.T) {
	sink := voice.NewRecorder()
	loop := newTestLoop(voice.NewScript("hello"), sink, &echoDispatcher{}, nil)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"echo: hello", InterruptFarewell}, sink.Texts()[1:])
}

func TestLoopRecoversFromPanickingTurn(t *testing.T) {
	sink := voice.NewRecorder()
	loop := newTestLoop(voice.NewScript("boom", "hello", "bye"), sink, &echoDispatcher{}, nil)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{TurnErrorReply, "echo: hello", intent.FarewellText}, sink.Texts()[1:])
}

type flakySource struct {
	calls int
}

func (f *flakySource) Acquire(context.Context, time.Duration) (string, bool, error) {
	f.calls++
	switch f.calls {
	case 1:
		return "", false, errors.New("microphone busy")
	case 2:
		return "bye", true, nil
	}
	return "", false, voice.ErrClosed
}

func TestLoopTreatsSourceErrorsAsSilence(t *testing.T) {
	sink := voice.NewRecorder()
	loop := newTestLoop(&flakySource{}, sink, &echoDispatcher{}, nil)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, intent.FarewellText, sink.Texts()[len(sink.Texts())-1])
}

func TestLoopRecordsTurnsAndNotices(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	log := conversation.NewLog(st, 20, zap.NewNop(), nil)
	loop := newTestLoop(voice.NewScript("hello", "bye"), voice.NewRecorder(), &echoDispatcher{}, log)

	require.NoError(t, loop.Run(ctx))

	turns, err := st.RecentTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Empty(t, turns[0].UserInput)
	assert.Contains(t, turns[0].Reply, "Good morning")
	assert.Equal(t, "hello", turns[1].UserInput)
	assert.Equal(t, "echo: hello", turns[1].Reply)
	assert.Equal(t, "bye", turns[2].UserInput)
	assert.Equal(t, intent.FarewellText, turns[2].Reply)
}

func TestLoopNotifyReportsSinkFailure(t *testing.T) {
	sink := voice.NewRecorder()
	loop := newTestLoop(voice.NewScript(), sink, &echoDispatcher{}, nil)

	require.NoError(t, loop.Notify(context.Background(), "Reminder: stretch"))
	assert.Equal(t, []string{"Reminder: stretch"}, sink.Texts())

	sink.FailWith(voice.ErrNoListeners)
	err := loop.Notify(context.Background(), "Reminder: water")
	require.Error(t, err)
	assert.ErrorIs(t, err, voice.ErrNoListeners)
}

func TestLoopNotifyRecordsOnlyDeliveredNotices(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	log := conversation.NewLog(st, 20, zap.NewNop(), nil)
	sink := voice.NewRecorder()
	loop := newTestLoop(voice.NewScript(), sink, &echoDispatcher{}, log)

	sink.FailWith(voice.ErrNoListeners)
	for range 3 {
		require.ErrorIs(t, loop.Notify(ctx, "Reminder: stretch"), voice.ErrNoListeners)
	}
	turns, err := st.RecentTurns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Empty(t, log.Recent())

	sink.FailWith(nil)
	require.NoError(t, loop.Notify(ctx, "Reminder: stretch"))
	turns, err = st.RecentTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "Reminder: stretch", turns[0].Reply)
	assert.True(t, turns[0].Replied)
}

func TestLoopWakeWordMatchesWholeWordsOnly(t *testing.T) {
	sink := voice.NewRecorder()
	d := &echoDispatcher{}
	loop := newTestLoop(voice.NewScript("add task buy braided rug", "hey Aide add task buy braided rug", "bye"), sink, d, nil)

	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, []string{"add task buy braided rug", "hey add task buy braided rug", "bye"}, d.seen())
	assert.NotContains(t, sink.Texts(), WakePrompt)
}
