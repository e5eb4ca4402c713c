// Package cards renders the adaptive cards sent to users by the bot.
package cards

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"timesheet/internal/aggregation"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.json
var templates embed.FS

type Kind string

const (
	KindWelcome          Kind = "welcome"
	KindFillReminder     Kind = "fill_reminder"
	KindApprovalReminder Kind = "approval_reminder"
	KindApproved         Kind = "approved"
	KindRejected         Kind = "rejected"
)

const dateLayout = "2006-01-02"

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Card carries the adaptive card JSON plus a plain rendering of the same
// content for channels without adaptive card support.
type Card struct {
	Kind    Kind            `json:"kind"`
	Title   string          `json:"title"`
	Summary string          `json:"summary"`
	Facts   []Fact          `json:"facts,omitempty"`
	Content json.RawMessage `json:"content"`
}

// Renderer keeps parsed templates in memory for the configured TTL.
type Renderer struct {
	appName   string
	templates *cache.Cache
}

func NewRenderer(appName string, ttl time.Duration) *Renderer {
	return &Renderer{appName: appName, templates: cache.New(ttl, 2*ttl)}
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

func (r *Renderer) template(kind Kind) (*template.Template, error) {
	if cached, ok := r.templates.Get(string(kind)); ok {
		return cached.(*template.Template), nil
	}

	raw, err := templates.ReadFile("templates/" + string(kind) + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown card %q: %w", kind, err)
	}
	tmpl, err := template.New(string(kind)).Funcs(funcs).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("error parsing card %q: %w", kind, err)
	}
	r.templates.SetDefault(string(kind), tmpl)
	return tmpl, nil
}

func (r *Renderer) render(card *Card) (*Card, error) {
	tmpl, err := r.template(card.Kind)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, card); err != nil {
		return nil, fmt.Errorf("error rendering card %q: %w", card.Kind, err)
	}
	if !json.Valid(buf.Bytes()) {
		return nil, fmt.Errorf("card %q rendered invalid json", card.Kind)
	}
	card.Content = buf.Bytes()
	return card, nil
}

// formatRanges renders grouped days as "2024-03-04 - 2024-03-06, 2024-03-08".
func formatRanges(days []time.Time) string {
	var parts []string
	for _, run := range aggregation.GroupContiguousDates(days) {
		first, last := run[0], run[len(run)-1]
		if first.Equal(last) {
			parts = append(parts, first.Format(dateLayout))
			continue
		}
		parts = append(parts, first.Format(dateLayout)+" - "+last.Format(dateLayout))
	}
	return strings.Join(parts, ", ")
}

func (r *Renderer) Welcome(lang language.Tag, userName string) (*Card, error) {
	p := message.NewPrinter(lang)
	return r.render(&Card{
		Kind:    KindWelcome,
		Title:   p.Sprintf("Welcome to %s, %s!", r.appName, userName),
		Summary: p.Sprintf("I will remind you to fill your timesheet and let you know when your manager reviews it."),
	})
}

func (r *Renderer) FillReminder(lang language.Tag, day time.Time) (*Card, error) {
	p := message.NewPrinter(lang)
	return r.render(&Card{
		Kind:    KindFillReminder,
		Title:   p.Sprintf("Timesheet reminder"),
		Summary: p.Sprintf("You have not filled your timesheet yet."),
		Facts:   []Fact{{Title: p.Sprintf("Date"), Value: day.Format(dateLayout)}},
	})
}

func (r *Renderer) ApprovalReminder(lang language.Tag, pending int, requesters []string) (*Card, error) {
	p := message.NewPrinter(lang)
	return r.render(&Card{
		Kind:    KindApprovalReminder,
		Title:   p.Sprintf("Timesheets waiting for approval"),
		Summary: p.Sprintf("You have %d pending timesheet requests.", pending),
		Facts:   []Fact{{Title: p.Sprintf("Requested by"), Value: strings.Join(requesters, ", ")}},
	})
}

func (r *Renderer) Approved(lang language.Tag, days []time.Time, hours float64, comments string) (*Card, error) {
	return r.reviewed(KindApproved, lang, days, hours, comments)
}

func (r *Renderer) Rejected(lang language.Tag, days []time.Time, hours float64, comments string) (*Card, error) {
	return r.reviewed(KindRejected, lang, days, hours, comments)
}

func (r *Renderer) reviewed(kind Kind, lang language.Tag, days []time.Time, hours float64, comments string) (*Card, error) {
	p := message.NewPrinter(lang)
	card := &Card{Kind: kind}
	if kind == KindApproved {
		card.Title = p.Sprintf("Timesheet approved")
		card.Summary = p.Sprintf("Your manager approved your timesheet.")
	} else {
		card.Title = p.Sprintf("Timesheet rejected")
		card.Summary = p.Sprintf("Your manager rejected your timesheet. Please review and resubmit.")
	}
	card.Facts = []Fact{
		{Title: p.Sprintf("Dates"), Value: formatRanges(days)},
		{Title: p.Sprintf("Hours"), Value: p.Sprintf("%.1f", hours)},
	}
	if comments != "" {
		card.Facts = append(card.Facts, Fact{Title: p.Sprintf("Comments"), Value: comments})
	}
	return r.render(card)
}
