package intent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/reminders"
	"github.com/ent0n29/aide/internal/services"
)

const (
	IntentKnowledge  = "knowledge"
	IntentWeather    = "weather"
	IntentNews       = "news"
	IntentCalculate  = "calculate"
	IntentTime       = "time"
	IntentDate       = "date"
	IntentTask       = "task"
	IntentReminder   = "reminder"
	IntentOpen       = "open"
	IntentApp        = "app"
	IntentSmartHome  = "smarthome"
	IntentScreenshot = "screenshot"
	IntentTranslate  = "translate"
	IntentSystem     = "system"
	IntentEmail      = "email"
	IntentJoke       = "joke"
	IntentQuit       = "quit"
	IntentFallback   = "fallback"
)

const (
	FarewellText = "Goodbye! Have a great day!"
	EmailText    = "Email functionality requires configuration. Please set up your email credentials."
)

var jokes = []string{
	"Why don't scientists trust atoms? Because they make up everything!",
	"I told my wife she was drawing her eyebrows too high. She looked surprised.",
	"Why don't programmers like nature? It has too many bugs!",
	"I'm reading a book about anti-gravity. It's impossible to put down!",
}

var fallbackPrompts = []string{
	"I'm not sure I understand. Could you rephrase that?",
	"That's interesting! I'm still learning about that topic.",
	"I didn't catch that. Could you try asking differently?",
	"I'm working on understanding more commands like that.",
	"Could you be more specific about what you'd like me to do?",
}

type site struct {
	name string
	url  string
}

// Checked in order; the first name contained in the input wins.
var knownSites = []site{
	{"youtube", "https://youtube.com"},
	{"google", "https://google.com"},
	{"github", "https://github.com"},
	{"stackoverflow", "https://stackoverflow.com"},
	{"reddit", "https://reddit.com"},
	{"twitter", "https://twitter.com"},
	{"facebook", "https://facebook.com"},
	{"instagram", "https://instagram.com"},
	{"whatsapp", "https://web.whatsapp.com"},
}

var languageCodes = map[string]string{
	"spanish": "es",
	"french":  "fr",
	"german":  "de",
	"italian": "it",
}

var quitWords = []string{"exit", "quit", "goodbye", "bye", "stop"}

var taskPriority = regexp.MustCompile(`\s+(?:with\s+)?priority\s+(-?\d+)$`)

func (d *Dispatcher) buildRules() []Rule {
	return []Rule{
		{
			Name:   IntentKnowledge,
			Match:  func(q string) bool { return strings.Contains(q, "wikipedia") },
			Handle: d.handleKnowledge,
		},
		{
			Name:   IntentWeather,
			Match:  func(q string) bool { return containsAny(q, "weather", "temperature", "forecast") },
			Handle: d.handleWeather,
		},
		{
			Name:   IntentNews,
			Match:  func(q string) bool { return strings.Contains(q, "news") },
			Handle: d.handleNews,
		},
		{
			Name:   IntentCalculate,
			Match:  func(q string) bool { return containsAny(q, "calculate", "compute", "math", "+", "-", "*", "/", "=") },
			Handle: d.handleCalculate,
		},
		{
			Name: IntentTime,
			Match: func(q string) bool {
				return strings.Contains(q, "time")
			},
			Handle: func(context.Context, string) Reply {
				return Reply{Text: "The current time is " + d.deps.Now().Format("03:04 PM")}
			},
		},
		{
			Name: IntentDate,
			Match: func(q string) bool {
				return strings.Contains(q, "date")
			},
			Handle: func(context.Context, string) Reply {
				return Reply{Text: "Today is " + d.deps.Now().Format("Monday, January 02, 2006")}
			},
		},
		{
			Name:   IntentTask,
			Match:  func(q string) bool { return containsAny(q, "task", "todo") },
			Handle: d.handleTask,
		},
		{
			Name:   IntentReminder,
			Match:  func(q string) bool { return strings.Contains(q, "remind") },
			Handle: d.handleReminder,
		},
		{
			Name: IntentOpen,
			// "open code" and "open notepad" belong to the app rule.
			Match: func(q string) bool {
				return strings.Contains(q, "open") && !containsAny(q, "open code", "open notepad")
			},
			Handle: d.handleOpen,
		},
		{
			Name:   IntentApp,
			Match:  func(q string) bool { return containsAny(q, "open code", "visual studio", "open notepad") },
			Handle: d.handleApp,
		},
		{
			Name:   IntentSmartHome,
			Match:  func(q string) bool { _, ok := findDevice(q); return ok },
			Handle: d.handleSmartHome,
		},
		{
			Name:   IntentScreenshot,
			Match:  func(q string) bool { return containsAny(q, "screenshot", "capture screen") },
			Handle: d.handleScreenshot,
		},
		{
			Name:   IntentTranslate,
			Match:  func(q string) bool { return strings.Contains(q, "translate") },
			Handle: d.handleTranslate,
		},
		{
			Name: IntentSystem,
			Match: func(q string) bool {
				return strings.Contains(q, "system") && containsAny(q, "info", "status")
			},
			Handle: d.handleSystem,
		},
		{
			Name:  IntentEmail,
			Match: func(q string) bool { return containsAny(q, "email", "send mail") },
			Handle: func(context.Context, string) Reply {
				return Reply{Text: EmailText}
			},
		},
		{
			Name:  IntentJoke,
			Match: func(q string) bool { return strings.Contains(q, "joke") },
			Handle: func(context.Context, string) Reply {
				return Reply{Text: jokes[d.deps.Pick(len(jokes))]}
			},
		},
		{
			Name:  IntentQuit,
			Match: func(q string) bool { return containsAny(q, quitWords...) },
			Handle: func(context.Context, string) Reply {
				return Reply{Text: FarewellText, Quit: true}
			},
		},
		{
			Name:   IntentFallback,
			Match:  func(string) bool { return true },
			Handle: d.handleFallback,
		},
	}
}

func (d *Dispatcher) handleKnowledge(ctx context.Context, q string) Reply {
	topic := squash(strings.NewReplacer("wikipedia", "", "search", "").Replace(q))
	if topic == "" {
		return Reply{Text: "What would you like me to search on Wikipedia?"}
	}
	if d.deps.Knowledge == nil {
		return Reply{Text: "Wikipedia search failed"}
	}
	if d.deps.Notifier != nil {
		if err := d.deps.Notifier.Notify(ctx, "Searching Wikipedia..."); err != nil {
			d.deps.Logger.Debug("interim notice not delivered", zap.Error(err))
		}
	}
	summary, err := d.deps.Knowledge.Summary(ctx, topic, 2)
	if err != nil {
		var dis *services.DisambiguationError
		if errors.As(err, &dis) && len(dis.Options) > 0 {
			opts := dis.Options
			if len(opts) > 3 {
				opts = opts[:3]
			}
			return Reply{Text: "Multiple results found. Please be more specific. Options: " + strings.Join(opts, ", ")}
		}
		d.serviceFailed("wikipedia", err)
		return Reply{Text: "Wikipedia search failed"}
	}
	return Reply{Text: "According to Wikipedia: " + summary}
}

func (d *Dispatcher) handleWeather(ctx context.Context, q string) Reply {
	city := d.deps.DefaultLocation
	if i := strings.LastIndex(q, " in "); i >= 0 {
		if c := strings.TrimSpace(q[i+len(" in "):]); c != "" {
			city = c
		}
	}
	if d.deps.Weather == nil {
		return Reply{Text: "Weather service not configured. Please add your OpenWeather API key."}
	}
	report, err := d.deps.Weather.Current(ctx, city)
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		return Reply{Text: "Weather service not configured. Please add your OpenWeather API key."}
	case services.IsNotFound(err):
		return Reply{Text: fmt.Sprintf("Couldn't get weather for %s", city)}
	case err != nil:
		d.serviceFailed("openweather", err)
		return Reply{Text: "Weather service temporarily unavailable"}
	}
	return Reply{Text: fmt.Sprintf("Weather in %s: %s°C, %s. Humidity: %d%%",
		city, strconv.FormatFloat(report.TempC, 'f', -1, 64), report.Description, report.Humidity)}
}

func newsCategory(q string) string {
	switch {
	case strings.Contains(q, "tech"):
		return "technology"
	case strings.Contains(q, "sport"):
		return "sports"
	case strings.Contains(q, "business"):
		return "business"
	default:
		return "general"
	}
}

func (d *Dispatcher) handleNews(ctx context.Context, q string) Reply {
	if d.deps.News == nil {
		return Reply{Text: "News service not configured. Please add your News API key."}
	}
	headlines, err := d.deps.News.Headlines(ctx, newsCategory(q), 5)
	var status *services.StatusError
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		return Reply{Text: "News service not configured. Please add your News API key."}
	case errors.As(err, &status):
		d.serviceFailed("newsapi", err)
		return Reply{Text: "Couldn't fetch news at the moment"}
	case err != nil:
		d.serviceFailed("newsapi", err)
		return Reply{Text: "News service temporarily unavailable"}
	case len(headlines) == 0:
		return Reply{Text: "Couldn't fetch news at the moment"}
	}
	return Reply{Text: "Here are the top headlines: " + strings.Join(headlines, ". ")}
}

func (d *Dispatcher) handleCalculate(ctx context.Context, q string) Reply {
	if d.deps.Calculator != nil {
		answer, err := d.deps.Calculator.Compute(ctx, q)
		if err == nil {
			return Reply{Text: "According to Wolfram Alpha: " + answer}
		}
		if !errors.Is(err, services.ErrNotConfigured) {
			d.serviceFailed("wolfram", err)
		}
	}
	expr := ExtractArithmetic(q)
	v, err := EvalArithmetic(expr)
	if err != nil {
		d.deps.Logger.Debug("local arithmetic failed", zap.String("expr", expr), zap.Error(err))
		return Reply{Text: "I couldn't calculate that"}
	}
	return Reply{Text: "The result is " + strconv.FormatFloat(v, 'f', -1, 64)}
}

func (d *Dispatcher) handleTask(ctx context.Context, q string) Reply {
	switch {
	case hasWord(q, "add", "create"):
		desc := strings.NewReplacer("add task", "", "create task", "", "add todo", "", "create todo", "").Replace(q)
		desc = squash(desc)
		priority := 1
		if m := taskPriority.FindStringSubmatch(" " + desc); m != nil {
			if p, err := strconv.Atoi(m[1]); err == nil {
				priority = p
				desc = squash(taskPriority.ReplaceAllString(" "+desc, ""))
			}
		}
		return Reply{Text: d.deps.Tasks.Add(ctx, desc, priority)}
	case hasWord(q, "list", "show"):
		return Reply{Text: d.deps.Tasks.List(ctx)}
	case hasWord(q, "complete", "done"):
		sub := squash(strings.NewReplacer("complete task", "", "mark done", "").Replace(q))
		return Reply{Text: d.deps.Tasks.Complete(ctx, sub)}
	default:
		return Reply{Text: "Would you like to add, list or complete a task?"}
	}
}

func (d *Dispatcher) handleReminder(ctx context.Context, q string) Reply {
	i := strings.LastIndex(q, " in ")
	if i < 0 {
		if hasWord(q, "list", "show", "what", "pending") {
			return Reply{Text: d.pendingReminders(ctx)}
		}
		return Reply{Text: "Please specify when you'd like to be reminded"}
	}
	text := squash(strings.NewReplacer("remind me to", "", "remind me", "").Replace(q[:i]))
	if text == "" {
		return Reply{Text: reminders.MissingTextPrompt}
	}
	expr := "in " + strings.TrimSpace(q[i+len(" in "):])
	return Reply{Text: d.deps.Reminders.Set(ctx, text, expr)}
}

func (d *Dispatcher) pendingReminders(ctx context.Context) string {
	pending, err := d.deps.Reminders.Pending(ctx)
	if err != nil {
		d.deps.Logger.Error("list reminders failed", zap.Error(err))
		return "Couldn't list reminders"
	}
	if len(pending) == 0 {
		return "No pending reminders"
	}
	items := make([]string, 0, len(pending))
	for _, r := range pending {
		items = append(items, fmt.Sprintf("%s at %s", r.Text, r.FireAt.In(d.deps.Now().Location()).Format(reminders.ConfirmLayout)))
	}
	return "Your reminders: " + strings.Join(items, ", ")
}

func (d *Dispatcher) handleOpen(ctx context.Context, q string) Reply {
	for _, s := range knownSites {
		if strings.Contains(q, s.name) {
			return d.openURL(ctx, s.name, s.url)
		}
	}
	words := strings.Fields(q)
	for i, w := range words {
		if w == "open" && i+1 < len(words) {
			name := strings.Trim(words[i+1], ".,!?")
			if name != "" {
				return d.openURL(ctx, name, "https://"+name+".com")
			}
		}
	}
	return Reply{Text: "What would you like me to open?"}
}

func (d *Dispatcher) openURL(ctx context.Context, name, url string) Reply {
	if d.deps.Browser != nil {
		if err := d.deps.Browser.Open(ctx, url); err != nil {
			d.serviceFailed("browser", err)
			return Reply{Text: "Couldn't open " + name}
		}
	}
	return Reply{Text: "Opening " + name}
}

func (d *Dispatcher) handleApp(ctx context.Context, q string) Reply {
	app, label := "notepad", "Notepad"
	if containsAny(q, "open code", "visual studio") {
		app, label = "code", "Visual Studio Code"
	}
	if d.deps.Apps == nil {
		return Reply{Text: label + " not found"}
	}
	if err := d.deps.Apps.Launch(ctx, app); err != nil {
		d.deps.Logger.Info("application launch failed", zap.String("app", app), zap.Error(err))
		return Reply{Text: label + " not found"}
	}
	return Reply{Text: "Opening " + label}
}

func (d *Dispatcher) handleSmartHome(_ context.Context, q string) Reply {
	device, _ := findDevice(q)
	action, ok := findAction(q)
	if !ok {
		return Reply{Text: fmt.Sprintf("What would you like me to do with the %s?", device)}
	}
	return Reply{Text: ControlDevice(device, action)}
}

func (d *Dispatcher) handleScreenshot(ctx context.Context, _ string) Reply {
	if d.deps.Screenshot == nil {
		return Reply{Text: "Couldn't take screenshot"}
	}
	name, err := d.deps.Screenshot.Capture(ctx)
	if err != nil {
		d.serviceFailed("screenshot", err)
		return Reply{Text: "Couldn't take screenshot"}
	}
	return Reply{Text: "Screenshot saved as " + name}
}

func (d *Dispatcher) handleTranslate(ctx context.Context, q string) Reply {
	const prompt = "Please specify what to translate and to which language"
	i := strings.LastIndex(q, " to ")
	if i < 0 {
		return Reply{Text: prompt}
	}
	text := squash(strings.Replace(q[:i], "translate", "", 1))
	target := strings.TrimSpace(q[i+len(" to "):])
	if text == "" || target == "" {
		return Reply{Text: prompt}
	}
	code, ok := languageCodes[target]
	if !ok {
		code = target
	}
	if d.deps.Translator == nil {
		return Reply{Text: "Translation service unavailable"}
	}
	out, err := d.deps.Translator.Translate(ctx, text, code)
	if err != nil {
		d.serviceFailed("translate", err)
		return Reply{Text: "Translation service unavailable"}
	}
	return Reply{Text: fmt.Sprintf("Translation (%s): %s", code, out)}
}

func (d *Dispatcher) handleSystem(ctx context.Context, _ string) Reply {
	if d.deps.System == nil {
		return Reply{Text: "Couldn't get system information"}
	}
	st, err := d.deps.System.Status(ctx)
	if err != nil {
		d.serviceFailed("system", err)
		return Reply{Text: "Couldn't get system information"}
	}
	return Reply{Text: fmt.Sprintf("System Status - CPU: %s%%, Memory: %s%%, Disk: %s%%",
		percent(st.CPUPercent), percent(st.MemoryPercent), percent(st.DiskPercent))}
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func (d *Dispatcher) handleFallback(ctx context.Context, q string) Reply {
	if d.deps.Learning != nil {
		d.deps.Learning.RecordUnknown(ctx, q)
	}
	return Reply{Text: fallbackPrompts[d.deps.Pick(len(fallbackPrompts))]}
}
