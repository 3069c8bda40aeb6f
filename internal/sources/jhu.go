package sources

import (
	"cloud.google.com/go/civil"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"os"
	"strconv"
	"strings"
	"time"
)

var jhuDateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02", "January 2, 2006", "01-02-2006", "1/2/06", "01-02-06"}

// JHU parses the early-career funding spreadsheet, which has to be downloaded by hand.
type JHU struct {
	endpoint  Endpoint
	path      string
	staleDays int
	now       func() time.Time
}

func NewJHU(endpoint Endpoint, path string, staleDays int) *JHU {
	return &JHU{endpoint: endpoint, path: path, staleDays: staleDays, now: time.Now}
}

func (s *JHU) Name() string {
	return s.endpoint.Name
}

func (s *JHU) Fetch(ctx context.Context) ([]entities.Opportunity, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrSourceFileMissing, "%s (download from %s)", s.path, s.endpoint.URL("download"))
	}
	if err != nil {
		return nil, errors.Wrap(err, "jhu spreadsheet")
	}

	book, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "jhu spreadsheet")
	}
	defer book.Close()

	sheet := book.GetSheetName(book.GetActiveSheetIndex())
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "jhu spreadsheet sheet %q", sheet)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	notes := s.staleness(info.ModTime())
	header := newJHUHeader(rows[0])

	var result []entities.Opportunity
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		title := header.get(row, "opportunity", "title", "name")
		if title == "" {
			continue
		}

		link := header.get(row, "url", "link", "website")
		if link == "" {
			link = s.endpoint.URL("download")
		}

		result = append(result, entities.Opportunity{
			ID:           "jhu:" + titleHash(title),
			Title:        title,
			URL:          link,
			Source:       s.Name(),
			Description:  header.get(row, "description", "subject", "subject matter"),
			Deadline:     s.deadline(book, sheet, header, row, i+2),
			Amount:       header.get(row, "amount", "funding", "award amount"),
			Eligibility:  header.get(row, "eligibility", "requirements"),
			Organization: header.get(row, "organization", "funder", "sponsor"),
			Notes:        notes,
		})
	}

	return finalize(result), nil
}

func (s *JHU) staleness(modified time.Time) string {
	if s.staleDays <= 0 {
		return ""
	}
	age := int(s.now().Sub(modified).Hours() / 24)
	if age <= s.staleDays {
		return ""
	}
	return fmt.Sprintf("Spreadsheet is %d days old; download a fresh copy from %s", age, s.endpoint.URL("download"))
}

// deadline tries the formatted text first and falls back to the raw serial number of a date cell.
func (s *JHU) deadline(book *excelize.File, sheet string, header jhuHeader, row []string, rowNumber int) *civil.Date {
	if date := parseDate(header.get(row, "deadline", "due date"), jhuDateLayouts...); date != nil {
		return date
	}

	column, ok := header.index("deadline", "due date")
	if !ok {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(column+1, rowNumber)
	if err != nil {
		return nil
	}
	raw, err := book.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return nil
	}
	date := civil.DateOf(t)
	return &date
}

// titleHash keeps ids stable across runs as long as the title does not change.
func titleHash(title string) string {
	sum := sha256.Sum256([]byte(title))
	return hex.EncodeToString(sum[:])[:8]
}

type jhuHeader map[string]int

func newJHUHeader(cells []string) jhuHeader {
	header := jhuHeader{}
	for i, cell := range cells {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name != "" {
			header[name] = i
		}
	}
	return header
}

func (h jhuHeader) index(aliases ...string) (int, bool) {
	for _, alias := range aliases {
		if i, ok := h[alias]; ok {
			return i, true
		}
	}
	return 0, false
}

// get returns the first non-empty value among the aliased columns.
func (h jhuHeader) get(row []string, aliases ...string) string {
	for _, alias := range aliases {
		i, ok := h[alias]
		if !ok || i >= len(row) {
			continue
		}
		if value := strings.TrimSpace(row[i]); value != "" {
			return value
		}
	}
	return ""
}
