package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/compare"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// TestToken is put in the unsubscribe link of test emails sent to addresses
// without a subscription.
const TestToken = "test-preview-no-token"

type Message struct {
	To      string
	Subject string
	HTML    string
	// Text is the plain text alternative of HTML.
	Text string
}

var directionColours = map[compare.Direction]string{
	compare.ADVANCED:       "#16a34a",
	compare.BECAME_CURRENT: "#16a34a",
	compare.RETROGRESSED:   "#dc2626",
	compare.LOST_CURRENT:   "#dc2626",
	compare.CHANGED:        "#d97706",
}

type emailChange struct {
	Label    string
	Previous string
	Colour   string
}

type emailField struct {
	Label  string
	Value  string
	Change *emailChange
}

type emailRecord struct {
	SubLabel string
	Fields   []emailField
}

type emailCategory struct {
	Code    string
	Updated bool
	Records []emailRecord
}

type emailData struct {
	BulletinDate   string
	PreviousDate   string
	SummaryText    string
	SummaryColour  string
	Categories     []emailCategory
	UnsubscribeURL string
}

// Recipient is who an email is composed for.
type Recipient struct {
	Email            string
	Categories       []string
	UnsubscribeToken string
}

// Composer builds notification emails.
type Composer struct {
	appBaseURL string
}

func NewComposer(appBaseURL string) Composer {
	if appBaseURL == "" {
		appBaseURL = "http://localhost:5000"
	}
	return Composer{
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

// UnsubscribeURL is the link that deactivates the subscription of token.
func (c Composer) UnsubscribeURL(token string) string {
	return fmt.Sprintf("%s/api/unsubscribe?token=%s", c.appBaseURL, url.QueryEscape(token))
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func Subject(period string, relevant bool) string {
	if relevant {
		return fmt.Sprintf("Visa Bulletin Update (%s): Your categories changed", orUnknown(period))
	}
	return fmt.Sprintf("Visa Bulletin Update (%s): No changes to your categories", orUnknown(period))
}

func TestSubject(period string) string {
	return fmt.Sprintf("[TEST] Visa Bulletin Preview - %s", orUnknown(period))
}

// ChangedCodes returns the subscription codes of every category that changed,
// was added or was removed.
func ChangedCodes(result compare.Result) map[string]bool {
	codes := map[string]bool{}
	for _, label := range result.ChangedLabels() {
		codes[bulletin.SubscriptionCode(label)] = true
	}
	return codes
}

// Relevant reports whether any of the categories is in codes.
func Relevant(categories []string, codes map[string]bool) bool {
	for _, c := range categories {
		if codes[c] {
			return true
		}
	}
	return false
}

func fieldLabel(key string) string {
	return cases.Title(language.English).String(strings.NewReplacer("_", " ", "-", " ").Replace(key))
}

func (c Composer) records(code string, result compare.Result, snapshot bulletin.Snapshot) ([]emailRecord, bool) {
	var records []emailRecord
	updated := false
	for _, record := range snapshot.Categories {
		if bulletin.SubscriptionCode(record.Category) != code {
			continue
		}

		changes := map[string]compare.FieldChange{}
		for _, change := range result.ChangesFor(record.Category) {
			changes[change.Country] = change
		}
		if len(changes) > 0 {
			updated = true
		}

		out := emailRecord{}
		if code == "DV" || record.Category != code {
			out.SubLabel = record.Category
		}
		for _, key := range record.Keys() {
			field := emailField{
				Label: fieldLabel(key),
				Value: record.Dates[key].String(),
			}
			if change, ok := changes[key]; ok {
				previous := change.Previous.String()
				if previous == "" {
					previous = "(none)"
				}
				field.Change = &emailChange{
					Label:    change.Direction.Label(),
					Previous: previous,
					Colour:   directionColours[change.Direction],
				}
			}
			out.Fields = append(out.Fields, field)
		}
		records = append(records, out)
	}
	return records, updated
}

func summary(result compare.Result) (text, colour string) {
	if !result.HasChanges() {
		return "No changes detected since the previous bulletin.", "#16a34a"
	}
	return fmt.Sprintf(
		"%d category(ies) changed, %d added, %d removed",
		result.ChangedCategories, len(result.Added), len(result.Removed),
	), "#d97706"
}

// Body renders the html body for a recipient. Categories are listed in the
// order the recipient picked them.
func (c Composer) Body(to Recipient, result compare.Result, snapshot bulletin.Snapshot) (string, error) {
	data := emailData{
		BulletinDate:   orUnknown(snapshot.BulletinDate),
		PreviousDate:   result.PreviousPeriod,
		UnsubscribeURL: c.UnsubscribeURL(to.UnsubscribeToken),
	}
	data.SummaryText, data.SummaryColour = summary(result)

	for _, code := range to.Categories {
		records, updated := c.records(code, result, snapshot)
		data.Categories = append(data.Categories, emailCategory{
			Code:    code,
			Updated: updated,
			Records: records,
		})
	}

	var out bytes.Buffer
	err := templates.ExecuteTemplate(&out, "email_body.html", data)
	if err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}
	return out.String(), nil
}

func (c Composer) message(to Recipient, subject, body string) (Message, error) {
	text, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return Message{}, fmt.Errorf("plain text alternative: %w", err)
	}
	return Message{
		To:      to.Email,
		Subject: subject,
		HTML:    body,
		Text:    text,
	}, nil
}

// Compose builds the notification of one subscriber.
func (c Composer) Compose(to Recipient, result compare.Result, snapshot bulletin.Snapshot) (Message, error) {
	body, err := c.Body(to, result, snapshot)
	if err != nil {
		return Message{}, err
	}
	relevant := Relevant(to.Categories, ChangedCodes(result))
	return c.message(to, Subject(snapshot.BulletinDate, relevant), body)
}

// ComposeTest builds a preview email of a snapshot without any comparison.
func (c Composer) ComposeTest(to Recipient, snapshot bulletin.Snapshot) (Message, error) {
	if len(to.Categories) == 0 {
		to.Categories = append([]string(nil), bulletin.SubscriptionCodes...)
		sort.Strings(to.Categories)
	}
	if to.UnsubscribeToken == "" {
		to.UnsubscribeToken = TestToken
	}
	body, err := c.Body(to, compare.Empty(snapshot, snapshot.ExtractedAt), snapshot)
	if err != nil {
		return Message{}, err
	}
	return c.message(to, TestSubject(snapshot.BulletinDate), body)
}

// previewPage wraps a body into a standalone page for a browser.
func previewPage(msg Message) (string, error) {
	var out bytes.Buffer
	err := templates.ExecuteTemplate(&out, "email_preview.html", struct {
		To      string
		Subject string
		Body    template.HTML
	}{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    template.HTML(msg.HTML),
	})
	if err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return out.String(), nil
}
