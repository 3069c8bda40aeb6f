package sources

import (
	"encoding/json"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func Test_Finalize_DropsMissingIDsAndKeepsFirstDuplicate(t *testing.T) {
	result := finalize([]entities.Opportunity{
		{ID: "ucla:1", Title: "first"},
		{ID: "ucla:", Title: "no local id"},
		{ID: "ucla:2", Title: "second"},
		{ID: "ucla:1", Title: "duplicate"},
		{ID: "", Title: "no id"},
	})

	assert.Equal(t, []string{"first", "second"}, lo.Map(result, func(o entities.Opportunity, _ int) string {
		return o.Title
	}))
}

func Test_ParseDate(t *testing.T) {
	assert.Equal(t, date(2025, time.January, 31), parseDate(" 01/31/2025 ", "2006-01-02", "01/02/2006"))
	assert.Equal(t, date(2025, time.January, 31), parseDate("January 31, 2025", jhuDateLayouts...))
	assert.Nil(t, parseDate("", "2006-01-02"))
	assert.Nil(t, parseDate("TBD", "2006-01-02"))
}

func Test_ParseDate_SingleDigitMonthAndDay(t *testing.T) {
	assert.Equal(t, date(2025, time.March, 1), parseDate("3/1/2025", uclaDateLayouts...))
	assert.Equal(t, date(2025, time.March, 1), parseDate("03/01/2025", uclaDateLayouts...))
	assert.Equal(t, date(2025, time.March, 1), parseDate("2025-03-01T00:00:00Z", uclaDateLayouts...))
	assert.Equal(t, date(2025, time.December, 9), parseDate("12-9-2025", zintellectDateLayouts...))
	assert.Equal(t, date(2025, time.December, 9), parseDate("12-09-2025", zintellectDateLayouts...))
}

func Test_FlexString_AcceptsScalars(t *testing.T) {
	var values []flexString
	require.NoError(t, json.Unmarshal([]byte(`["a", 12, 1.5, true, null]`), &values))

	assert.Equal(t, []flexString{"a", "12", "1.5", "true", ""}, values)

	var bad flexString
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &bad))
}

func Test_Dollars(t *testing.T) {
	assert.Equal(t, "$0", dollars(0))
	assert.Equal(t, "$999", dollars(999))
	assert.Equal(t, "$1,000", dollars(1000))
	assert.Equal(t, "$1,234,568", dollars(1234567.5))
}

func Test_PlainText(t *testing.T) {
	assert.Equal(t, "Tom & Jerry fellowship", plainText("<p>Tom &amp; Jerry</p>\n<b>fellowship</b>"))
}

func Test_Catalog_ListsEverySourceOnce(t *testing.T) {
	catalog, err := Catalog()
	require.NoError(t, err)

	tags := lo.Map(catalog, func(e Endpoint, _ int) string { return e.Tag })
	assert.Equal(t, []string{"ucla", "uci", "ca-grants", "zintellect", "pathways", "ucsd", "jhu"}, tags)

	pathways, _ := lo.Find(catalog, func(e Endpoint) bool { return e.Tag == "pathways" })
	assert.Equal(t, 1500*time.Millisecond, pathways.MinInterval)
}

func Test_Build_FollowsEnabledOrder(t *testing.T) {
	cfg := config.SourcesConfig{
		Enabled:   []string{"jhu", "ucla", "jhu"},
		Timeout:   time.Second,
		UserAgent: "test",
		JHUFile:   "missing.xlsx",
	}

	result, err := Build(cfg, testProfile())

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "JHU Early Career Funding", result[0].Name())
	assert.Equal(t, "UCLA Graduate Funding", result[1].Name())
}

func Test_Build_DefaultsToWholeCatalog(t *testing.T) {
	result, err := Build(config.SourcesConfig{Timeout: time.Second}, testProfile())

	require.NoError(t, err)
	assert.Len(t, result, 7)
}

func Test_Build_RejectsUnknownSource(t *testing.T) {
	_, err := Build(config.SourcesConfig{Enabled: []string{"nsf"}, Timeout: time.Second}, testProfile())

	assert.ErrorContains(t, err, `unknown source "nsf"`)
}
