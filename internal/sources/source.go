package sources

import (
	"cloud.google.com/go/civil"
	"context"
	"encoding/json"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"html"
	"strconv"
	"strings"
	"time"
)

// ErrSourceFileMissing marks an optional local input that is not present; it is not a fetch failure.
var ErrSourceFileMissing = errors.New("source file not found")

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]entities.Opportunity, error)
}

// finalize drops records without a source-local id and keeps the first record of every id.
func finalize(opportunities []entities.Opportunity) []entities.Opportunity {
	withID := lo.Filter(opportunities, func(o entities.Opportunity, _ int) bool {
		_, local, found := strings.Cut(o.ID, ":")
		return found && strings.TrimSpace(local) != ""
	})
	return lo.UniqBy(withID, func(o entities.Opportunity) string {
		return o.ID
	})
}

func parseDate(raw string, layouts ...string) *civil.Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			date := civil.DateOf(t)
			return &date
		}
	}
	return nil
}

var textPolicy = bluemonday.StrictPolicy()

// plainText strips markup from an HTML fragment and collapses whitespace.
func plainText(fragment string) string {
	return collapseSpaces(html.UnescapeString(textPolicy.Sanitize(fragment)))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// flexString accepts a JSON string, number, or bool; null decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	switch v := value.(type) {
	case nil:
		*f = ""
	case string:
		*f = flexString(v)
	case float64:
		*f = flexString(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*f = flexString(strconv.FormatBool(v))
	default:
		return errors.Errorf("unsupported JSON value %s", string(data))
	}
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// dollars formats an amount the way award listings print it, e.g. $12,500.
func dollars(amount float64) string {
	digits := strconv.FormatInt(int64(amount+0.5), 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}
