package sources

import (
	"context"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"net/url"
	"strconv"
)

const zintellectMaxTerms = 4

var zintellectLevels = map[config.AcademicLevel]int{
	config.PhDStudent:    1006145,
	config.Postdoc:       1006146,
	config.PostMasters:   1006147,
	config.PostBachelors: 1006162,
}

var zintellectCitizenship = map[config.Citizenship]int{
	config.USCitizen:           3,
	config.USPermanentResident: 2,
	config.AnyCitizenship:      1,
}

var zintellectDateLayouts = []string{"01-02-2006", "1-2-2006"}

type zintellectResponse struct {
	Data []zintellectItem `json:"data"`
}

type zintellectItem struct {
	ID             flexString `json:"id"`
	Title          string     `json:"title"`
	ReferenceCode  string     `json:"referenceCode"`
	ExpirationDate string     `json:"expirationDate"`
}

// Zintellect searches the ORISE opportunity catalog once per leading profile keyword.
type Zintellect struct {
	endpoint Endpoint
	client   *Client
	profile  config.ProfileConfig
}

func NewZintellect(endpoint Endpoint, client *Client, profile config.ProfileConfig) *Zintellect {
	return &Zintellect{endpoint: endpoint, client: client, profile: profile}
}

func (s *Zintellect) Name() string {
	return s.endpoint.Name
}

func (s *Zintellect) searchTerms() []string {
	if len(s.profile.Keywords) == 0 {
		return []string{""}
	}
	if len(s.profile.Keywords) > zintellectMaxTerms {
		return s.profile.Keywords[:zintellectMaxTerms]
	}
	return s.profile.Keywords
}

func (s *Zintellect) Fetch(ctx context.Context) ([]entities.Opportunity, error) {
	var result []entities.Opportunity

	for _, term := range s.searchTerms() {
		items, err := s.search(ctx, term)
		if err != nil {
			return nil, errors.Wrapf(err, "zintellect search %q", term)
		}

		for _, item := range items {
			result = append(result, entities.Opportunity{
				ID:           "zintellect:" + item.ID.String(),
				Title:        item.Title,
				URL:          s.endpoint.URL("detail") + item.ReferenceCode,
				Source:       s.Name(),
				Description:  item.Title,
				Deadline:     parseDate(item.ExpirationDate, zintellectDateLayouts...),
				Organization: s.endpoint.Organization,
			})
		}
	}

	return finalize(result), nil
}

func (s *Zintellect) search(ctx context.Context, keyword string) ([]zintellectItem, error) {
	level, ok := zintellectLevels[s.profile.AcademicLevel]
	if !ok {
		level = zintellectLevels[config.PhDStudent]
	}
	citizenship, ok := zintellectCitizenship[s.profile.Citizenship]
	if !ok {
		citizenship = zintellectCitizenship[config.USCitizen]
	}

	form := url.Values{}
	form.Set("draw", "1")
	form.Set("start", "0")
	form.Set("length", "200")
	form.Set("Keyword", keyword)
	form.Set("AcademicLevels", strconv.Itoa(level))
	form.Set("Citizenship", strconv.Itoa(citizenship))
	form.Set("ShowOnlyResumeMatches", "false")
	form.Set("IsCatalogSortedByElasticSearchScore", strconv.FormatBool(keyword != ""))

	headers := map[string]string{
		"X-Requested-With": "XMLHttpRequest",
		"Accept":           "application/json",
	}

	var response zintellectResponse
	if err := s.client.PostFormJSON(ctx, s.endpoint.URL("search"), form, headers, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}
