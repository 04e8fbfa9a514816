package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

const (
	colorRed  = 0xFF0000 // product alert
	colorGrey = 0x808080 // summary with nothing found
	colorLime = 0x00FF00 // summary with finds

	// Discord limits per message: 10 embeds and 6000 characters summed over
	// every embed's title, description, field names and values, and footer.
	maxEmbeds       = 10
	maxMessageChars = 6000
	maxTitleLen     = 256
	defaultUsername = "Discount Notifier"
	foundAtLayout   = "15:04 on 02/01/2006"
)

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	name       string
	webhookURL string
	username   string
	client     *http.Client
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// WithUsername overrides the bot name shown on messages.
func WithUsername(u string) DiscordOption {
	return func(d *DiscordNotifier) {
		if u != "" {
			d.username = u
		}
	}
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(name, webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		name:       name,
		webhookURL: webhookURL,
		username:   defaultUsername,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Image       *discordImage       `json:"image,omitempty"`
	Footer      *discordFooter      `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Name returns the destination name.
func (d *DiscordNotifier) Name() string { return d.name }

// Send posts one embed per product, split across as many messages as the
// Discord limits require. Messages are posted in order and env.Sent advances
// after each one, so a retried envelope resumes after the last posted message.
func (d *DiscordNotifier) Send(ctx context.Context, env *domain.NotificationEnvelope) error {
	pending := env.Products[min(env.Sent, len(env.Products)):]
	for _, batch := range buildMessages(pending) {
		payload := discordWebhookPayload{
			Username: d.username,
			Embeds:   batch,
		}
		if err := postJSON(ctx, d.client, d.webhookURL, nil, payload); err != nil {
			return err
		}
		env.Sent += len(batch)
	}
	return nil
}

// SendSummary posts the end-of-run report.
func (d *DiscordNotifier) SendSummary(ctx context.Context, s *Summary) error {
	color := colorGrey
	if s.Qualifying > 0 {
		color = colorLime
	}

	fields := []discordEmbedField{
		{Name: "Products Checked", Value: fmt.Sprint(s.ProductsScraped), Inline: true},
		{Name: "High Discounts Found", Value: fmt.Sprint(s.Qualifying), Inline: true},
		{Name: "Notified", Value: fmt.Sprint(s.Notified), Inline: true},
		{Name: "Retailers Checked", Value: joinOrNone(s.Retailers)},
	}
	if len(s.Failed) > 0 {
		fields = append(fields, discordEmbedField{Name: "Failed Collectors", Value: strings.Join(s.Failed, ", ")})
	}

	payload := discordWebhookPayload{
		Username: d.username,
		Embeds: []discordEmbed{{
			Title:     "Scraping Session Summary",
			Color:     color,
			Fields:    fields,
			Footer:    &discordFooter{Text: "Run " + s.RunID},
			Timestamp: s.FinishedAt.UTC().Format(time.RFC3339),
		}},
	}
	return postJSON(ctx, d.client, d.webhookURL, nil, payload)
}

// SendTest posts a plain connectivity message.
func (d *DiscordNotifier) SendTest(ctx context.Context) error {
	return postJSON(ctx, d.client, d.webhookURL, nil, discordWebhookPayload{
		Username: d.username,
		Content:  "Webhook test: discount notifier is online.",
	})
}

// buildMessages groups one embed per product into messages that each stay
// within the embed count and character budget.
func buildMessages(products []domain.Product) [][]discordEmbed {
	var (
		messages [][]discordEmbed
		current  []discordEmbed
		chars    int
	)
	for i := range products {
		e := buildEmbed(&products[i])
		n := embedChars(&e)
		if len(current) == maxEmbeds || (len(current) > 0 && chars+n > maxMessageChars) {
			messages = append(messages, current)
			current, chars = nil, 0
		}
		current = append(current, e)
		chars += n
	}
	if len(current) > 0 {
		messages = append(messages, current)
	}
	return messages
}

// embedChars counts the characters Discord charges against the message total.
func embedChars(e *discordEmbed) int {
	n := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		n += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	if e.Footer != nil {
		n += utf8.RuneCountInString(e.Footer.Text)
	}
	return n
}

func buildEmbed(p *domain.Product) discordEmbed {
	orig := formatMoney(p.Currency, p.OriginalPrice.Decimal)
	sale := formatMoney(p.Currency, p.SalePrice)
	pct := discountLabel(p)

	embed := discordEmbed{
		Title: truncate(fmt.Sprintf("%s%% OFF - %s", pct, p.Name), maxTitleLen),
		URL:   p.URL,
		Color: colorRed,
		Fields: []discordEmbedField{
			{Name: "Price", Value: fmt.Sprintf("~~%s~~ **%s**", orig, sale), Inline: true},
			{Name: "Discount", Value: fmt.Sprintf("**%s%%** off", pct), Inline: true},
			{Name: "You Save", Value: fmt.Sprintf("**%s**", formatMoney(p.Currency, p.Savings())), Inline: true},
			{Name: "Retailer", Value: p.Retailer, Inline: true},
			{Name: "Found At", Value: p.DiscoveredAt.Format(foundAtLayout), Inline: true},
		},
		Footer:    &discordFooter{Text: "High Discount Alert"},
		Timestamp: p.DiscoveredAt.UTC().Format(time.RFC3339),
	}
	if p.URL != "" {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name: "Shop Now", Value: fmt.Sprintf("[View Product](%s)", p.URL), Inline: true,
		})
	}
	if p.ImageURL != "" {
		embed.Image = &discordImage{URL: p.ImageURL}
	}
	return embed
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}
