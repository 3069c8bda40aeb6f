package sources

import (
	"context"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"net/url"
	"regexp"
	"strings"
)

const (
	pathwaysAudience   = "GradPhDs_Graduate Students (PhD)"
	pathwaysMaxQueries = 3
)

var (
	pathwaysSortParam = regexp.MustCompile(`sort=(.+?)(?:&|$)`)
	pathwaysReadMore  = regexp.MustCompile(`\s*\.\.\.read more\s*$`)
)

// Pathways crawls the Pathways to Science program search for PhD-level programs.
type Pathways struct {
	endpoint  Endpoint
	userAgent string
	profile   config.ProfileConfig
}

func NewPathways(endpoint Endpoint, userAgent string, profile config.ProfileConfig) *Pathways {
	return &Pathways{endpoint: endpoint, userAgent: userAgent, profile: profile}
}

func (s *Pathways) Name() string {
	return s.endpoint.Name
}

func (s *Pathways) queries() []url.Values {
	portable := url.Values{}
	portable.Set("u", pathwaysAudience)
	portable.Set("p", "YesPortable")
	queries := []url.Values{portable}

	for i, keyword := range s.profile.Keywords {
		if i == pathwaysMaxQueries {
			break
		}
		query := url.Values{}
		query.Set("u", pathwaysAudience)
		query.Set("ft", keyword)
		queries = append(queries, query)
	}

	for _, query := range queries {
		query.Set("adv", "adv")
		query.Set("submit", "y")
	}
	return queries
}

func (s *Pathways) collector(ctx context.Context) (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)

	if s.endpoint.MinInterval > 0 {
		err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: s.endpoint.MinInterval})
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *Pathways) Fetch(ctx context.Context) ([]entities.Opportunity, error) {
	c, err := s.collector(ctx)
	if err != nil {
		return nil, err
	}

	var result []entities.Opportunity
	c.OnHTML("body", func(e *colly.HTMLElement) {
		result = append(result, s.parseResults(e.DOM)...)
	})

	for _, query := range s.queries() {
		if err := c.Visit(s.endpoint.URL("search") + "?" + query.Encode()); err != nil {
			return nil, errors.Wrap(err, "pathways search")
		}
	}

	return finalize(result), nil
}

// parseResults walks the result blocks in page order; an h2 block names the institution of the programs after it.
func (s *Pathways) parseResults(page *goquery.Selection) []entities.Opportunity {
	var result []entities.Opportunity
	institution := ""

	page.Find("div.progigert").Each(func(_ int, div *goquery.Selection) {
		if header := div.Find("h2").First(); header.Length() > 0 {
			institution = collapseSpaces(header.Text())
			return
		}

		link := div.Find(`a[href*="programhub"]`).First()
		if link.Length() == 0 {
			return
		}

		title := collapseSpaces(link.Text())
		if title == "...read more" {
			return
		}

		href, _ := link.Attr("href")
		if !strings.HasPrefix(href, "http") {
			href = s.endpoint.URL("base") + "/" + strings.TrimLeft(href, "/")
		}

		programID := href
		if match := pathwaysSortParam.FindStringSubmatch(href); match != nil {
			programID = match[1]
		}

		description := collapseSpaces(div.Find("div").First().Text())
		description = pathwaysReadMore.ReplaceAllString(description, "")

		result = append(result, entities.Opportunity{
			ID:           "pathways:" + programID,
			Title:        title,
			URL:          href,
			Source:       s.Name(),
			Description:  description,
			Eligibility:  "PhD Students",
			Organization: institution,
		})
	})

	return result
}
