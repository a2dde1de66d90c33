package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propwise/models"
	"propwise/pricing"
)

const alertSubjectFormat = "PropWise Alert: %d New Properties Match Your Search!"

var alertTemplate = template.Must(template.New("alert").Parse(`<html><body>
<p>Hi {{.Username}},</p>
<p>We found {{.Count}} new properties matching your saved search '{{.SearchName}}'.</p>
<ul>
{{- range .Items}}
<li><a href="{{.URL}}">{{.Title}}</a> {{.Price}}{{if .Area}} in {{.Area}}{{end}}</li>
{{- end}}
</ul>
<p>Log in to <a href="{{.SiteURL}}">{{.SiteURL}}</a> to see them!</p>
<p>- The PropWise Team</p>
</body></html>`))

type alertItem struct {
	Title string
	Price string
	Area  string
	URL   string
}

// Composer renders alert messages for a site.
type Composer struct {
	Domain   string
	Currency string
}

func (c Composer) SiteURL() string {
	return "http://" + strings.TrimSuffix(c.Domain, "/")
}

func (c Composer) ListingURL(id fmt.Stringer) string {
	return c.SiteURL() + "/properties/" + id.String() + "/"
}

// Alert builds the message sent when a saved search has new matches.
func (c Composer) Alert(owner models.User, search *models.SavedSearch, matches []models.Listing) (Message, error) {
	items := make([]alertItem, 0, len(matches))
	for _, l := range matches {
		items = append(items, alertItem{
			Title: l.Title,
			Price: pricing.FormatPrice(c.Currency, l.Price),
			Area:  l.AreaLabel(),
			URL:   c.ListingURL(l.ID),
		})
	}

	var buf bytes.Buffer
	err := alertTemplate.Execute(&buf, map[string]any{
		"Username":   owner.Username,
		"Count":      len(matches),
		"SearchName": search.Name,
		"Items":      items,
		"SiteURL":    c.SiteURL(),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render alert: %w", err)
	}

	text, err := PlainText(buf.String())
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      owner,
		Subject: fmt.Sprintf(alertSubjectFormat, len(matches)),
		Text:    text,
		HTML:    buf.String(),
		Link:    c.SiteURL() + "/saved-searches/",
		Alert: &AlertPayload{
			SearchID:   search.ID.String(),
			SearchName: search.Name,
			Count:      len(matches),
			Listings:   matches,
		},
	}, nil
}

// PlainText flattens an HTML body into paragraphs and bullet lines.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var blocks []string
	prevItem := false
	doc.Find("p, li").Each(func(i int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		if goquery.NodeName(s) == "li" {
			line := "* " + text
			if prevItem {
				blocks[len(blocks)-1] += "\n" + line
			} else {
				blocks = append(blocks, line)
			}
			prevItem = true
			return
		}
		blocks = append(blocks, text)
		prevItem = false
	})

	return strings.Join(blocks, "\n\n"), nil
}
