package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/PuerkitoBio/goquery"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"net/url"
	"path"
	"strconv"
	"strings"
)

var uciAcceptedLevels = map[config.AcademicLevel][]string{
	config.Dissertation: {"current", "advanced"},
	config.PhDStudent:   {"current", "prospective", "advanced"},
}

type uciFellowship struct {
	ID    int    `json:"id"`
	Link  string `json:"link"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
	// WordPress sends false or [] instead of an object when no custom fields are set.
	ACF json.RawMessage `json:"acf"`
}

type uciFields struct {
	ApplicationStatus   string     `json:"application_status"`
	AcademicLevel       string     `json:"academic_level"`
	Deadline            flexString `json:"deadline"`
	Amount              flexString `json:"amount"`
	EligibilityCriteria string     `json:"eligibility_criteria"`
}

func (f uciFellowship) fields() uciFields {
	var fields uciFields
	if err := json.Unmarshal(f.ACF, &fields); err != nil {
		return uciFields{}
	}
	return fields
}

// UCI reads open fellowships from the graduate division WordPress API and its announcements page.
type UCI struct {
	endpoint       Endpoint
	client         *Client
	acceptedLevels []string
}

func NewUCI(endpoint Endpoint, client *Client, profile config.ProfileConfig) *UCI {
	levels, ok := uciAcceptedLevels[profile.AcademicLevel]
	if !ok {
		levels = []string{"current", "advanced"}
	}
	return &UCI{endpoint: endpoint, client: client, acceptedLevels: levels}
}

func (s *UCI) Name() string {
	return s.endpoint.Name
}

func (s *UCI) Fetch(ctx context.Context) ([]entities.Opportunity, error) {
	fellowships, err := s.fetchAPI(ctx)
	if err != nil {
		return nil, err
	}

	announcements, err := s.fetchAnnouncements(ctx)
	if err != nil {
		return nil, err
	}

	return finalize(append(fellowships, announcements...)), nil
}

func (s *UCI) accepts(level string) bool {
	if level == "" {
		return true
	}
	for _, accepted := range s.acceptedLevels {
		if accepted == level {
			return true
		}
	}
	return false
}

func (s *UCI) fetchAPI(ctx context.Context) ([]entities.Opportunity, error) {
	var fellowships []uciFellowship
	if err := s.client.GetJSON(ctx, s.endpoint.URL("api")+"?per_page=100", nil, &fellowships); err != nil {
		return nil, errors.Wrap(err, "uci fellowships")
	}

	var result []entities.Opportunity
	for _, item := range fellowships {
		fields := item.fields()
		if fields.ApplicationStatus != "open" || !s.accepts(fields.AcademicLevel) {
			continue
		}

		result = append(result, entities.Opportunity{
			ID:           "uci:" + strconv.Itoa(item.ID),
			Title:        plainText(item.Title.Rendered),
			URL:          item.Link,
			Source:       s.Name(),
			Description:  plainText(item.Content.Rendered),
			Deadline:     parseDate(fields.Deadline.String(), "20060102"),
			Amount:       fields.Amount.String(),
			Eligibility:  plainText(fields.EligibilityCriteria),
			Organization: s.endpoint.Organization,
		})
	}
	return result, nil
}

func (s *UCI) fetchAnnouncements(ctx context.Context) ([]entities.Opportunity, error) {
	pageURL := s.endpoint.URL("announcements")
	body, err := s.client.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "uci announcements")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "uci announcements")
	}
	base, _ := url.Parse(pageURL)

	var result []entities.Opportunity
	doc.Find("article a[href]").Each(func(_ int, link *goquery.Selection) {
		title := collapseSpaces(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return
		}
		if base != nil {
			if resolved, err := base.Parse(href); err == nil {
				href = resolved.String()
			}
		}

		result = append(result, entities.Opportunity{
			ID:           "uci-announce:" + path.Base(strings.TrimRight(href, "/")),
			Title:        title,
			URL:          href,
			Source:       s.Name(),
			Description:  collapseSpaces(link.Closest("article").Text()),
			Organization: s.endpoint.Organization,
		})
	})
	return result, nil
}
