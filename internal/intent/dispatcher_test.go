package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/reminders"
	"github.com/ent0n29/aide/internal/services"
	"github.com/ent0n29/aide/internal/store"
	"github.com/ent0n29/aide/internal/tasks"
)

type fakeWeather struct {
	report services.WeatherReport
	err    error
	city   string
}

func (f *fakeWeather) Current(_ context.Context, city string) (services.WeatherReport, error) {
	f.city = city
	if f.err != nil {
		return services.WeatherReport{}, f.err
	}
	r := f.report
	r.City = city
	return r, nil
}

type fakeNews struct {
	headlines []string
	err       error
	category  string
}

func (f *fakeNews) Headlines(_ context.Context, category string, _ int) ([]string, error) {
	f.category = category
	return f.headlines, f.err
}

type fakeKnowledge struct {
	summary string
	err     error
	topic   string
}

func (f *fakeKnowledge) Summary(_ context.Context, topic string, _ int) (string, error) {
	f.topic = topic
	return f.summary, f.err
}

type fakeCalculator struct {
	answer string
	err    error
}

func (f fakeCalculator) Compute(context.Context, string) (string, error) { return f.answer, f.err }

type fakeOpener struct{ urls []string }

func (f *fakeOpener) Open(_ context.Context, url string) error {
	f.urls = append(f.urls, url)
	return nil
}

type fakeApps struct {
	launched []string
	err      error
}

func (f *fakeApps) Launch(_ context.Context, app string) error {
	if f.err != nil {
		return f.err
	}
	f.launched = append(f.launched, app)
	return nil
}

type fakeTranslator struct{ text, target string }

func (f *fakeTranslator) Translate(_ context.Context, text, target string) (string, error) {
	f.text, f.target = text, target
	if text == "hello" {
		return "hola", nil
	}
	return "", errors.New("unsupported")
}

type fakeSystem struct{}

func (fakeSystem) Status(context.Context) (services.SystemStatus, error) {
	return services.SystemStatus{CPUPercent: 12.34, MemoryPercent: 50, DiskPercent: 71.06}, nil
}

type fakeScreenshot struct{ err error }

func (f fakeScreenshot) Capture(context.Context) (string, error) {
	return "screenshot_20260101_120000.png", f.err
}

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

type recordingLearner struct{ inputs []string }

func (r *recordingLearner) RecordUnknown(_ context.Context, text string) {
	r.inputs = append(r.inputs, text)
}

type noticeRecorder struct{ texts []string }

func (n *noticeRecorder) Notify(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

var fixedNow = time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, mutate func(*Deps)) (*Dispatcher, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	deps := Deps{
		Tasks:     tasks.NewManager(st, zap.NewNop(), nil),
		Reminders: reminders.NewManager(st, zap.NewNop(), nil),
		Logger:    zap.NewNop(),
		Now:       func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewDispatcher(deps), st
}

func TestRuleOrder(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	assert.Equal(t, []string{
		"knowledge", "weather", "news", "calculate", "time", "date", "task",
		"reminder", "open", "app", "smarthome", "screenshot", "translate",
		"system", "email", "joke", "quit", "fallback",
	}, d.Rules())
}

func TestWeatherBeatsNews(t *testing.T) {
	w := &fakeWeather{report: services.WeatherReport{TempC: 18.5, Description: "clear sky", Humidity: 40}}
	n := &fakeNews{headlines: []string{"x"}}
	d, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Weather = w
		deps.News = n
	})

	reply := d.Dispatch(context.Background(), "What's the weather and news")
	assert.Equal(t, IntentWeather, reply.Intent)
	assert.Equal(t, "London", w.city)
	assert.Equal(t, "Weather in London: 18.5°C, clear sky. Humidity: 40%", reply.Text)
	assert.Empty(t, n.category, "news must not be consulted")
}

func TestWeatherLocationAndFailures(t *testing.T) {
	ctx := context.Background()
	w := &fakeWeather{report: services.WeatherReport{TempC: 20, Description: "rain", Humidity: 90}}
	d, _ := newTestDispatcher(t, func(deps *Deps) { deps.Weather = w })
	assert.Equal(t, "Weather in rome: 20°C, rain. Humidity: 90%", d.Dispatch(ctx, "weather in Rome").Text)

	w.err = services.ErrNotConfigured
	assert.Equal(t, "Weather service not configured. Please add your OpenWeather API key.", d.Dispatch(ctx, "weather").Text)
	w.err = &services.StatusError{Service: "openweather", Code: 404}
	assert.Equal(t, "Couldn't get weather for atlantis", d.Dispatch(ctx, "forecast in atlantis").Text)
	w.err = errors.New("dial tcp: timeout")
	assert.Equal(t, "Weather service temporarily unavailable", d.Dispatch(ctx, "temperature").Text)

	bare, _ := newTestDispatcher(t, nil)
	assert.Equal(t, "Weather service not configured. Please add your OpenWeather API key.", bare.Dispatch(ctx, "weather").Text)
}

func TestNews(t *testing.T) {
	ctx := context.Background()
	n := &fakeNews{headlines: []string{"Chips get faster", "New phone"}}
	d, _ := newTestDispatcher(t, func(deps *Deps) { deps.News = n })

	assert.Equal(t, "Here are the top headlines: Chips get faster. New phone", d.Dispatch(ctx, "tech news").Text)
	assert.Equal(t, "technology", n.category)
	d.Dispatch(ctx, "sports news")
	assert.Equal(t, "sports", n.category)
	d.Dispatch(ctx, "the news")
	assert.Equal(t, "general", n.category)

	n.headlines = nil
	assert.Equal(t, "Couldn't fetch news at the moment", d.Dispatch(ctx, "news").Text)
	n.err = errors.New("connection reset")
	assert.Equal(t, "News service temporarily unavailable", d.Dispatch(ctx, "news").Text)
	n.err = services.ErrNotConfigured
	assert.Equal(t, "News service not configured. Please add your News API key.", d.Dispatch(ctx, "news").Text)
}

func TestCalculate(t *testing.T) {
	ctx := context.Background()
	local, _ := newTestDispatcher(t, nil)
	assert.Equal(t, "The result is 14", local.Dispatch(ctx, "what is 2 + 3 * 4").Text)
	assert.Equal(t, "The result is 42", local.Dispatch(ctx, "calculate 6 times 7").Text)
	assert.Equal(t, "The result is 2.5", local.Dispatch(ctx, "calculate 5 divided by 2").Text)
	assert.Equal(t, "I couldn't calculate that", local.Dispatch(ctx, "calculate 1 / 0").Text)
	assert.Equal(t, "I couldn't calculate that", local.Dispatch(ctx, "calculate the meaning of life").Text)

	remote, _ := newTestDispatcher(t, func(deps *Deps) { deps.Calculator = fakeCalculator{answer: "4"} })
	assert.Equal(t, "According to Wolfram Alpha: 4", remote.Dispatch(ctx, "compute 2+2").Text)

	broken, _ := newTestDispatcher(t, func(deps *Deps) { deps.Calculator = fakeCalculator{err: errors.New("quota")} })
	reply := broken.Dispatch(ctx, "compute 2+2")
	assert.Equal(t, IntentCalculate, reply.Intent)
	assert.Equal(t, "The result is 4", reply.Text)
}

func TestTimeAndDate(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	assert.Equal(t, "The current time is 03:04 PM", d.Dispatch(context.Background(), "what time is it").Text)
	assert.Equal(t, "Today is Friday, January 02, 2026", d.Dispatch(context.Background(), "what's the date").Text)
}

func TestTaskScenario(t *testing.T) {
	ctx := context.Background()
	d, st := newTestDispatcher(t, nil)

	reply := d.Dispatch(ctx, "add task buy milk")
	assert.Equal(t, IntentTask, reply.Intent)
	assert.Equal(t, "Task added: buy milk", reply.Text)

	pending, err := st.ListIncompleteTasks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Priority)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), pending[0].DueAt, time.Minute)

	assert.Contains(t, d.Dispatch(ctx, "list my tasks").Text, "buy milk (Priority: 1)")
}

func TestTaskVerbs(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, nil)

	assert.Equal(t, "Task added: file taxes", d.Dispatch(ctx, "create task file taxes with priority 3").Text)
	assert.Equal(t, "Task added: water plants", d.Dispatch(ctx, "add todo water plants").Text)
	assert.Equal(t, "Your pending tasks: file taxes (Priority: 3), water plants (Priority: 1)", d.Dispatch(ctx, "show tasks").Text)
	assert.Equal(t, "Task completed: water", d.Dispatch(ctx, "complete task water").Text)
	assert.Equal(t, "Task not found", d.Dispatch(ctx, "complete task water").Text)
	assert.Equal(t, "Would you like to add, list or complete a task?", d.Dispatch(ctx, "tasks").Text)
}

func TestReminderScenario(t *testing.T) {
	ctx := context.Background()
	d, st := newTestDispatcher(t, nil)

	before := time.Now()
	reply := d.Dispatch(ctx, "remind me to call mom in 10 minutes")
	after := time.Now()
	assert.Equal(t, IntentReminder, reply.Intent)
	assert.True(t, strings.HasPrefix(reply.Text, "Reminder set: call mom at "), reply.Text)

	pending, err := st.ListPendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "call mom", pending[0].Text)
	assert.Equal(t, 10*time.Minute, pending[0].FireAt.Sub(pending[0].CreatedAt))
	assert.False(t, pending[0].CreatedAt.Before(before.Truncate(time.Second)))
	assert.False(t, pending[0].CreatedAt.After(after))
	assert.True(t, strings.HasSuffix(reply.Text, pending[0].FireAt.Format(reminders.ConfirmLayout)))

	assert.Equal(t, "Please specify when you'd like to be reminded", d.Dispatch(ctx, "remind me to stretch").Text)
	assert.Contains(t, d.Dispatch(ctx, "list reminders").Text, "Your reminders: call mom at ")
}

func TestReminderWithoutTextIsNotSaved(t *testing.T) {
	ctx := context.Background()
	d, st := newTestDispatcher(t, nil)

	for _, in := range []string{"remind me in 10 minutes", "remind me to in 5 minutes"} {
		reply := d.Dispatch(ctx, in)
		assert.Equal(t, IntentReminder, reply.Intent, in)
		assert.Equal(t, "What should I remind you about?", reply.Text, in)
	}
	pending, err := st.ListPendingReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSplitsOnLastSeparator(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	d, st := newTestDispatcher(t, func(deps *Deps) { deps.Translator = tr })

	d.Dispatch(ctx, "translate go to school to spanish")
	assert.Equal(t, "go to school", tr.text)
	assert.Equal(t, "es", tr.target)

	d.Dispatch(ctx, "remind me to log in to the portal in 5 minutes")
	pending, err := st.ListPendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "log in to the portal", pending[0].Text)
	assert.Equal(t, 5*time.Minute, pending[0].FireAt.Sub(pending[0].CreatedAt))
}

func TestReminderUnparsedTimeDefaultsToOneHour(t *testing.T) {
	ctx := context.Background()
	d, st := newTestDispatcher(t, nil)

	d.Dispatch(ctx, "remind me to check in with bob in a while")
	pending, err := st.ListPendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "check in with bob", pending[0].Text)
	assert.Equal(t, time.Hour, pending[0].FireAt.Sub(pending[0].CreatedAt))
}

func TestOpenAndApps(t *testing.T) {
	ctx := context.Background()
	opener := &fakeOpener{}
	apps := &fakeApps{}
	d, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Browser = opener
		deps.Apps = apps
	})

	assert.Equal(t, "Opening youtube", d.Dispatch(ctx, "open youtube please").Text)
	assert.Equal(t, "Opening whatsapp", d.Dispatch(ctx, "open whatsapp").Text)
	assert.Equal(t, "Opening example", d.Dispatch(ctx, "open example").Text)
	assert.Equal(t, []string{"https://youtube.com", "https://web.whatsapp.com", "https://example.com"}, opener.urls)
	assert.Equal(t, "What would you like me to open?", d.Dispatch(ctx, "open").Text)

	reply := d.Dispatch(ctx, "open code")
	assert.Equal(t, IntentApp, reply.Intent)
	assert.Equal(t, "Opening Visual Studio Code", reply.Text)
	assert.Equal(t, "Opening Notepad", d.Dispatch(ctx, "open notepad").Text)
	assert.Equal(t, []string{"code", "notepad"}, apps.launched)

	apps.err = errors.New("executable file not found in $PATH")
	assert.Equal(t, "Visual Studio Code not found", d.Dispatch(ctx, "launch visual studio").Text)
}

func TestSmartHome(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, nil)
	cases := map[string]string{
		"turn on the lights":       "Smart home: lights on command executed",
		"disarm the security":      "Smart home: security disarm command executed",
		"arm security":             "Smart home: security arm command executed",
		"next track on the music":  "Smart home: music next command executed",
		"increase the thermostat":  "Smart home: thermostat increase command executed",
		"dim the music":            "Smart home device 'music' not found or action 'dim' not supported",
		"do something with lights": "What would you like me to do with the lights?",
	}
	for in, want := range cases {
		reply := d.Dispatch(ctx, in)
		assert.Equal(t, IntentSmartHome, reply.Intent, in)
		assert.Equal(t, want, reply.Text, in)
	}
}

func TestScreenshotTranslateSystemEmail(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	d, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Translator = tr
		deps.System = fakeSystem{}
		deps.Screenshot = fakeScreenshot{}
	})

	assert.Equal(t, "Screenshot saved as screenshot_20260101_120000.png", d.Dispatch(ctx, "take a screenshot").Text)
	assert.Equal(t, "Translation (es): hola", d.Dispatch(ctx, "translate hello to spanish").Text)
	assert.Equal(t, "Translation service unavailable", d.Dispatch(ctx, "translate goodnight to pt").Text)
	assert.Equal(t, "pt", tr.target)
	assert.Equal(t, "Please specify what to translate and to which language", d.Dispatch(ctx, "translate hello").Text)
	assert.Equal(t, "System Status - CPU: 12.3%, Memory: 50.0%, Disk: 71.1%", d.Dispatch(ctx, "system status").Text)
	assert.Equal(t, EmailText, d.Dispatch(ctx, "send an email to bob").Text)

	failing, _ := newTestDispatcher(t, func(deps *Deps) { deps.Screenshot = fakeScreenshot{err: errors.New("no display")} })
	assert.Equal(t, "Couldn't take screenshot", failing.Dispatch(ctx, "capture screen").Text)
}

func TestKnowledge(t *testing.T) {
	ctx := context.Background()
	k := &fakeKnowledge{summary: "Go is a language. It is fast."}
	notices := &noticeRecorder{}
	d, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Knowledge = k
		deps.Notifier = notices
	})

	assert.Equal(t, "According to Wikipedia: Go is a language. It is fast.", d.Dispatch(ctx, "search wikipedia golang").Text)
	assert.Equal(t, "golang", k.topic)
	assert.Equal(t, []string{"Searching Wikipedia..."}, notices.texts)

	assert.Equal(t, "What would you like me to search on Wikipedia?", d.Dispatch(ctx, "wikipedia").Text)

	k.err = &services.DisambiguationError{Topic: "mercury", Options: []string{"a", "b", "c", "d"}}
	assert.Equal(t, "Multiple results found. Please be more specific. Options: a, b, c", d.Dispatch(ctx, "wikipedia mercury").Text)

	k.err = errors.New("boom")
	assert.Equal(t, "Wikipedia search failed", d.Dispatch(ctx, "wikipedia mercury").Text)
}

func TestJokeIsUniform(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	const draws = 4000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		reply := d.Dispatch(context.Background(), "tell me a joke")
		require.Equal(t, IntentJoke, reply.Intent)
		counts[reply.Text]++
	}
	require.Len(t, counts, len(jokes))
	for _, j := range jokes {
		// Expected 1000 per joke; the bound is over 7 standard deviations.
		assert.InDelta(t, draws/len(jokes), counts[j], 200, j)
	}
}

func TestQuit(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	for _, in := range []string{"bye", "Goodbye!", "exit", "quit now"} {
		reply := d.Dispatch(context.Background(), in)
		assert.True(t, reply.Quit, in)
		assert.Equal(t, IntentQuit, reply.Intent)
		assert.Equal(t, FarewellText, reply.Text)
	}
	assert.False(t, d.Dispatch(context.Background(), "hello").Quit)
}

func TestFallbackRecordsLearningAndTriggersDueCheck(t *testing.T) {
	learner := &recordingLearner{}
	trigger := &countingTrigger{}
	d, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Learning = learner
		deps.DueCheck = trigger
		deps.Pick = func(int) int { return 2 }
	})

	reply := d.Dispatch(context.Background(), "  Sing Me A Song ")
	assert.Equal(t, IntentFallback, reply.Intent)
	assert.Equal(t, "I didn't catch that. Could you try asking differently?", reply.Text)
	assert.Equal(t, []string{"sing me a song"}, learner.inputs)

	d.Dispatch(context.Background(), "what time is it")
	assert.Equal(t, 2, trigger.n)
}
