package sources

import (
	"cloud.google.com/go/civil"
	"context"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func date(year int, month time.Month, day int) *civil.Date {
	return &civil.Date{Year: year, Month: month, Day: day}
}

func testProfile() config.ProfileConfig {
	return config.ProfileConfig{
		Keywords:       []string{"nutrition", "epidemiology"},
		Disciplines:    []string{"Public Health", "life sciences", "astronomy"},
		AcademicLevel:  config.PhDStudent,
		Citizenship:    config.USCitizen,
		ScoreThreshold: 10,
	}
}

func Test_UCLA_Fetch(t *testing.T) {
	doer := &mockHTTPClient{}
	doer.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		query := req.URL.Query()
		return req.URL.Host == "ucla.test" &&
			query.Get("fq") == "publichealth:true OR lifesciences:true OR currentgrad:true" &&
			query.Get("rows") == "200"
	})).Return(fileResponse(t, "ucla_select.json"), nil)

	source := NewUCLA(Endpoint{
		Name: "UCLA Graduate Funding",
		URLs: map[string]string{"search": "https://ucla.test/select", "detail": "https://ucla.test/detail/"},
	}, testClient(doer), testProfile())

	result, err := source.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, entities.Opportunity{
		ID:           "ucla:4711",
		Title:        "Public Health Dissertation Fellowship",
		URL:          "https://ucla.test/detail/4711",
		Source:       "UCLA Graduate Funding",
		Description:  "Supports doctoral research on health disparities.",
		Deadline:     date(2025, time.March, 15),
		Amount:       "$32,500",
		Eligibility:  "Fellowship",
		Organization: "UCLA Graduate Division",
	}, result[0])
	assert.Equal(t, "ucla:4712", result[1].ID)
	assert.Equal(t, date(2025, time.May, 1), result[1].Deadline)
	assert.Empty(t, result[1].Amount)
}

func Test_UCLA_FilterQuery_AddsDissertationLevel(t *testing.T) {
	profile := testProfile()
	profile.Disciplines = nil
	profile.AcademicLevel = config.Dissertation

	source := NewUCLA(Endpoint{}, nil, profile)

	assert.Equal(t, "currentgrad:true OR doctoraldiss:true", source.filterQuery())
}

func Test_UCI_Fetch_CombinesAPIAndAnnouncements(t *testing.T) {
	doer := &mockHTTPClient{}
	doer.On("Do", requestTo("https://uci.test/wp-json/fellowships?per_page=100")).
		Return(fileResponse(t, "uci_fellowships.json"), nil).Once()
	doer.On("Do", requestTo("https://uci.test/announcements/")).
		Return(fileResponse(t, "uci_announcements.html"), nil).Once()

	source := NewUCI(Endpoint{
		Name:         "UCI Graduate Fellowships",
		Organization: "UC Irvine Graduate Division",
		URLs: map[string]string{
			"api":           "https://uci.test/wp-json/fellowships",
			"announcements": "https://uci.test/announcements/",
		},
	}, testClient(doer), testProfile())

	result, err := source.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, entities.Opportunity{
		ID:           "uci:101",
		Title:        "Nutrition & Health Scholars",
		URL:          "https://grad.uci.edu/fellowships/nutrition-scholars/",
		Source:       "UCI Graduate Fellowships",
		Description:  "Funding for food insecurity research.",
		Deadline:     date(2025, time.April, 1),
		Amount:       "$10,000",
		Eligibility:  "Enrolled PhD students",
		Organization: "UC Irvine Graduate Division",
	}, result[0])

	assert.Equal(t, "uci-announce:community-health-award", result[1].ID)
	assert.Equal(t, "Community Health Award", result[1].Title)
	assert.Equal(t, "https://uci.test/funding/announcements/community-health-award/", result[1].URL)
	assert.Equal(t, "Community Health Award Open to advanced doctoral candidates.", result[1].Description)
	doer.AssertExpectations(t)
}

func Test_UCI_Fetch_FailsWhenAnnouncementsFail(t *testing.T) {
	doer := &mockHTTPClient{}
	doer.On("Do", requestTo("https://uci.test/api")).Return(fileResponse(t, "uci_fellowships.json"), nil)
	doer.On("Do", requestTo("https://uci.test/announcements")).
		Return(&http.Response{StatusCode: 500, Body: io.NopCloser(strings.NewReader(""))}, nil)

	source := NewUCI(Endpoint{URLs: map[string]string{
		"api": "https://uci.test/api", "announcements": "https://uci.test/announcements",
	}}, testClient(doer), testProfile())

	result, err := source.Fetch(context.Background())

	assert.Error(t, err)
	assert.Nil(t, result)
}

func Test_CAGrants_Fetch(t *testing.T) {
	doer := &mockHTTPClient{}
	doer.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		sql := req.URL.Query().Get("sql")
		return strings.Contains(sql, `FROM "resource-1"`) && strings.Contains(sql, `LIKE '%Health%'`)
	})).Return(fileResponse(t, "ca_grants.json"), nil)

	source := NewCAGrants(Endpoint{
		Name:         "California Grants Portal",
		Organization: "California",
		URLs:         map[string]string{"search": "https://ca.test/sql", "resource": "resource-1"},
	}, testClient(doer))

	result, err := source.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, entities.Opportunity{
		ID:           "ca-grants:17",
		Title:        "Community Nutrition Grant",
		URL:          "https://www.grants.ca.gov/grants/community-nutrition/",
		Source:       "California Grants Portal",
		Description:  "Improve access to healthy food.",
		Deadline:     date(2025, time.June, 30),
		Amount:       "Total: $2,000,000 | Per award: $50,000",
		Eligibility:  "Nonprofit",
		Organization: "Department of Public Health",
	}, result[0])
	assert.Equal(t, "Training grants.", result[1].Description)
	assert.Equal(t, "California", result[1].Organization)
	assert.Nil(t, result[1].Deadline)
	assert.Empty(t, result[1].Amount)
}

func Test_CAGrants_Fetch_ShouldFailWhenDatastoreReportsFailure(t *testing.T) {
	doer := &mockHTTPClient{}
	doer.On("Do", mock.Anything).
		Return(&http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(`{"success": false}`))}, nil)

	source := NewCAGrants(Endpoint{URLs: map[string]string{"search": "https://ca.test/sql"}}, testClient(doer))

	_, err := source.Fetch(context.Background())
	assert.Error(t, err)
}

func Test_Zintellect_Fetch_SearchesLeadingKeywordsAndDeduplicates(t *testing.T) {
	var keywords []string
	doer := &mockHTTPClient{}
	matcher := mock.MatchedBy(func(req *http.Request) bool {
		form := formOf(req)
		return req.Method == http.MethodPost && req.Header.Get("X-Requested-With") == "XMLHttpRequest" &&
			form.Get("AcademicLevels") == "1006145" && form.Get("Citizenship") == "3" &&
			form.Get("IsCatalogSortedByElasticSearchScore") == "true"
	})
	record := func(args mock.Arguments) {
		keywords = append(keywords, formOf(args.Get(0).(*http.Request)).Get("Keyword"))
	}
	doer.On("Do", matcher).Run(record).Return(fileResponse(t, "zintellect_search.json"), nil).Once()
	doer.On("Do", matcher).Run(record).Return(fileResponse(t, "zintellect_search.json"), nil).Once()

	source := NewZintellect(Endpoint{
		Name:         "Zintellect/ORISE",
		Organization: "ORISE",
		URLs:         map[string]string{"search": "https://zintellect.test/search", "detail": "https://zintellect.test/details/"},
	}, testClient(doer), testProfile())

	result, err := source.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, []string{"nutrition", "epidemiology"}, keywords)
	assert.Equal(t, entities.Opportunity{
		ID:           "zintellect:9001",
		Title:        "CDC Epidemiology Fellowship",
		URL:          "https://zintellect.test/details/CDC-EPI-2025",
		Source:       "Zintellect/ORISE",
		Description:  "CDC Epidemiology Fellowship",
		Deadline:     date(2025, time.April, 30),
		Organization: "ORISE",
	}, result[0])
	assert.Nil(t, result[1].Deadline)
	doer.AssertExpectations(t)
}

func Test_Zintellect_SearchTerms(t *testing.T) {
	profile := testProfile()

	profile.Keywords = nil
	assert.Equal(t, []string{""}, NewZintellect(Endpoint{}, nil, profile).searchTerms())

	profile.Keywords = []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, []string{"a", "b", "c", "d"}, NewZintellect(Endpoint{}, nil, profile).searchTerms())
}

func Test_UCSD_Fetch(t *testing.T) {
	doer := &mockHTTPClient{}
	doer.On("Do", requestTo("https://airtable.test/embed/shr?viewControls=on")).
		Return(fileResponse(t, "ucsd_embed.html"), nil)
	doer.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return strings.HasPrefix(req.URL.String(), "https://airtable.test/v0.3/view/viwTest/readSharedViewData") &&
			req.Header.Get("x-airtable-application-id") == "appTest"
	})).Return(fileResponse(t, "ucsd_table.json"), nil)

	source := NewUCSD(Endpoint{
		Name: "UCSD Young Investigator",
		URLs: map[string]string{
			"embed":    "https://airtable.test/embed/shr",
			"base":     "https://airtable.test",
			"app":      "appTest",
			"fallback": "https://ucsd.test/young-investigators.html",
		},
	}, testClient(doer))

	result, err := source.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, entities.Opportunity{
		ID:           "ucsd:recA",
		Title:        "Early Career Nutrition Award",
		URL:          "https://example.org/award",
		Source:       "UCSD Young Investigator",
		Description:  "Nutrition | Public Health",
		Deadline:     date(2025, time.September, 1),
		Amount:       "150000",
		Eligibility:  "Young Investigators / Early Career",
		Organization: "Example Foundation",
	}, result[0])
	assert.Equal(t, "https://ucsd.test/young-investigators.html", result[1].URL)
	assert.Empty(t, result[1].Description)
}

func Test_UCSD_Fetch_ShouldFailWithoutDataURL(t *testing.T) {
	doer := &mockHTTPClient{}
	doer.On("Do", mock.Anything).
		Return(&http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("<html><script>var x = 1;</script></html>"))}, nil)

	source := NewUCSD(Endpoint{URLs: map[string]string{"embed": "https://airtable.test/embed/shr"}}, testClient(doer))

	_, err := source.Fetch(context.Background())
	assert.ErrorContains(t, err, "urlWithParams")
}
