package sources

import (
	"bytes"
	"context"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var airtableDataURL = regexp.MustCompile(`urlWithParams:\s*"([^"]+)"`)

type airtableResponse struct {
	Data struct {
		Table struct {
			Columns []airtableColumn `json:"columns"`
			Rows    []airtableRow    `json:"rows"`
		} `json:"table"`
	} `json:"data"`
}

type airtableColumn struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TypeOptions *struct {
		Choices map[string]struct {
			Name string `json:"name"`
		} `json:"choices"`
	} `json:"typeOptions"`
}

type airtableRow struct {
	ID    string         `json:"id"`
	Cells map[string]any `json:"cellValuesByColumnId"`
}

// airtableTable resolves cells by column name, since column ids differ between shares.
type airtableTable struct {
	columnByName map[string]string
	choices      map[string]map[string]string
}

func newAirtableTable(columns []airtableColumn) airtableTable {
	table := airtableTable{columnByName: map[string]string{}, choices: map[string]map[string]string{}}
	for _, column := range columns {
		table.columnByName[column.Name] = column.ID
		if column.TypeOptions == nil || len(column.TypeOptions.Choices) == 0 {
			continue
		}
		names := map[string]string{}
		for id, choice := range column.TypeOptions.Choices {
			names[id] = choice.Name
		}
		table.choices[column.ID] = names
	}
	return table
}

func (t airtableTable) text(row airtableRow, column string) string {
	value, ok := row.Cells[t.columnByName[column]]
	if !ok || value == nil {
		return ""
	}
	if list, ok := value.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (t airtableTable) choiceNames(row airtableRow, column string) []string {
	columnID := t.columnByName[column]
	ids, ok := row.Cells[columnID].([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		key := fmt.Sprint(id)
		if name, ok := t.choices[columnID][key]; ok {
			key = name
		}
		names = append(names, key)
	}
	return names
}

// UCSD reads the young investigator funding table from its public Airtable share.
type UCSD struct {
	endpoint Endpoint
	client   *Client
}

func NewUCSD(endpoint Endpoint, client *Client) *UCSD {
	return &UCSD{endpoint: endpoint, client: client}
}

func (s *UCSD) Name() string {
	return s.endpoint.Name
}

func (s *UCSD) Fetch(ctx context.Context) ([]entities.Opportunity, error) {
	dataURL, err := s.dataURL(ctx)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"x-airtable-application-id": s.endpoint.URL("app"),
		"X-Requested-With":          "XMLHttpRequest",
		"x-time-zone":               "America/Los_Angeles",
	}

	var response airtableResponse
	if err := s.client.GetJSON(ctx, dataURL, headers, &response); err != nil {
		return nil, errors.Wrap(err, "ucsd table")
	}

	table := newAirtableTable(response.Data.Table.Columns)
	result := make([]entities.Opportunity, 0, len(response.Data.Table.Rows))

	for _, row := range response.Data.Table.Rows {
		link := table.text(row, "Link to Opportunity")
		if link == "" {
			link = s.endpoint.URL("fallback")
		}

		result = append(result, entities.Opportunity{
			ID:           "ucsd:" + row.ID,
			Title:        table.text(row, "Funding Opportunity"),
			URL:          link,
			Source:       s.Name(),
			Description:  strings.Join(table.choiceNames(row, "Keywords"), " | "),
			Deadline:     parseDate(table.text(row, "Deadline"), time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"),
			Amount:       table.text(row, "Funding Amount | Period"),
			Eligibility:  "Young Investigators / Early Career",
			Organization: table.text(row, "Funder"),
		})
	}

	return finalize(result), nil
}

// dataURL finds the table request the embed page would issue from its inline bootstrap script.
func (s *UCSD) dataURL(ctx context.Context) (string, error) {
	body, err := s.client.Get(ctx, s.endpoint.URL("embed")+"?viewControls=on", nil)
	if err != nil {
		return "", errors.Wrap(err, "ucsd embed page")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "ucsd embed page")
	}

	var escaped string
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		if match := airtableDataURL.FindStringSubmatch(script.Text()); match != nil {
			escaped = match[1]
			return false
		}
		return true
	})
	if escaped == "" {
		return "", errors.New("ucsd embed page: urlWithParams not found")
	}

	dataURL, err := strconv.Unquote(`"` + escaped + `"`)
	if err != nil {
		return "", errors.Wrap(err, "ucsd embed page: bad urlWithParams")
	}
	if dataURL == "" {
		return "", errors.New("ucsd embed page: empty urlWithParams")
	}

	if !strings.HasPrefix(dataURL, "http") {
		dataURL = s.endpoint.URL("base") + dataURL
	}
	return dataURL, nil
}
