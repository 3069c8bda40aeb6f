package sources

import (
	"context"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"net/url"
	"strings"
)

var uclaDisciplineFields = map[string]string{
	"public health":   "publichealth",
	"social sciences": "socialsciences",
	"life sciences":   "lifesciences",
}

var uclaDateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02T15:04:05Z"}

type uclaResponse struct {
	Response struct {
		Docs []uclaDoc `json:"docs"`
	} `json:"response"`
}

type uclaDoc struct {
	RecordNo         flexString `json:"recordno"`
	AwardTitle       string     `json:"awardtitle"`
	Description      string     `json:"description"`
	CombinedDeadline string     `json:"CombinedDeadline"`
	AmountYearly     *float64   `json:"awardamountyearly"`
	AwardType        string     `json:"awardtype"`
	Agency           string     `json:"agency1"`
}

// UCLA queries the GRAPES Solr index of graduate awards.
type UCLA struct {
	endpoint Endpoint
	client   *Client
	profile  config.ProfileConfig
}

func NewUCLA(endpoint Endpoint, client *Client, profile config.ProfileConfig) *UCLA {
	return &UCLA{endpoint: endpoint, client: client, profile: profile}
}

func (s *UCLA) Name() string {
	return s.endpoint.Name
}

func (s *UCLA) filterQuery() string {
	var parts []string
	for _, discipline := range s.profile.Disciplines {
		if field, ok := uclaDisciplineFields[strings.ToLower(discipline)]; ok {
			parts = append(parts, field+":true")
		}
	}

	parts = append(parts, "currentgrad:true")
	if s.profile.AcademicLevel == config.Dissertation {
		parts = append(parts, "doctoraldiss:true")
	}
	return strings.Join(parts, " OR ")
}

func (s *UCLA) Fetch(ctx context.Context) ([]entities.Opportunity, error) {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("wt", "json")
	params.Set("fq", s.filterQuery())
	params.Set("rows", "200")

	var response uclaResponse
	if err := s.client.GetJSON(ctx, s.endpoint.URL("search")+"?"+params.Encode(), nil, &response); err != nil {
		return nil, errors.Wrap(err, "ucla search")
	}

	result := make([]entities.Opportunity, 0, len(response.Response.Docs))
	for _, doc := range response.Response.Docs {
		amount := ""
		if doc.AmountYearly != nil && *doc.AmountYearly != 0 {
			amount = dollars(*doc.AmountYearly)
		}

		result = append(result, entities.Opportunity{
			ID:           "ucla:" + doc.RecordNo.String(),
			Title:        doc.AwardTitle,
			URL:          s.endpoint.URL("detail") + doc.RecordNo.String(),
			Source:       s.Name(),
			Description:  doc.Description,
			Deadline:     parseDate(doc.CombinedDeadline, uclaDateLayouts...),
			Amount:       amount,
			Eligibility:  doc.AwardType,
			Organization: doc.Agency,
		})
	}

	return finalize(result), nil
}
