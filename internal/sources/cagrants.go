package sources

import (
	"context"
	"fmt"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"net/url"
	"strings"
)

const caGrantsQuery = `SELECT "Title", "Categories", "ApplicationDeadline", "EstAvailFunds", "EstAmounts", ` +
	`"Purpose", "GrantURL", "ApplicantType", "Description", "FundingSource", "_id" ` +
	`FROM "%s" WHERE "Status" = 'active' ` +
	`AND ("Categories" LIKE '%%Health%%' OR "Categories" LIKE '%%Food%%' OR "Categories" LIKE '%%Education%%') ` +
	`ORDER BY "ApplicationDeadline" ASC`

type caGrantsResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []caGrantsRecord `json:"records"`
	} `json:"result"`
}

type caGrantsRecord struct {
	ID                  flexString `json:"_id"`
	Title               flexString `json:"Title"`
	ApplicationDeadline flexString `json:"ApplicationDeadline"`
	EstAvailFunds       flexString `json:"EstAvailFunds"`
	EstAmounts          flexString `json:"EstAmounts"`
	Purpose             flexString `json:"Purpose"`
	Description         flexString `json:"Description"`
	GrantURL            flexString `json:"GrantURL"`
	ApplicantType       flexString `json:"ApplicantType"`
	FundingSource       flexString `json:"FundingSource"`
}

// CAGrants runs a SQL query against the CKAN datastore behind the California Grants Portal.
type CAGrants struct {
	endpoint Endpoint
	client   *Client
}

func NewCAGrants(endpoint Endpoint, client *Client) *CAGrants {
	return &CAGrants{endpoint: endpoint, client: client}
}

func (s *CAGrants) Name() string {
	return s.endpoint.Name
}

func (s *CAGrants) Fetch(ctx context.Context) ([]entities.Opportunity, error) {
	params := url.Values{}
	params.Set("sql", fmt.Sprintf(caGrantsQuery, s.endpoint.URL("resource")))

	var response caGrantsResponse
	if err := s.client.GetJSON(ctx, s.endpoint.URL("search")+"?"+params.Encode(), nil, &response); err != nil {
		return nil, errors.Wrap(err, "ca grants search")
	}
	if !response.Success {
		return nil, errors.New("ca grants search: datastore reported failure")
	}

	result := make([]entities.Opportunity, 0, len(response.Result.Records))
	for _, record := range response.Result.Records {
		var amount []string
		if record.EstAvailFunds != "" {
			amount = append(amount, "Total: "+record.EstAvailFunds.String())
		}
		if record.EstAmounts != "" {
			amount = append(amount, "Per award: "+record.EstAmounts.String())
		}

		description := record.Description.String()
		if description == "" {
			description = record.Purpose.String()
		}

		organization := record.FundingSource.String()
		if organization == "" {
			organization = s.endpoint.Organization
		}

		deadline := record.ApplicationDeadline.String()
		if len(deadline) > 19 {
			deadline = deadline[:19]
		}

		result = append(result, entities.Opportunity{
			ID:           "ca-grants:" + record.ID.String(),
			Title:        record.Title.String(),
			URL:          record.GrantURL.String(),
			Source:       s.Name(),
			Description:  description,
			Deadline:     parseDate(deadline, "2006-01-02T15:04:05", "2006-01-02"),
			Amount:       strings.Join(amount, " | "),
			Eligibility:  record.ApplicantType.String(),
			Organization: organization,
		})
	}

	return finalize(result), nil
}
