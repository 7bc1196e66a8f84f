// Package parse extracts fund fields from a rendered factsheet document.
//
// The factsheet lays its data out as label/value table cells:
//
//	<td>Exit Price:</td><td>$1.2345 (10/01/2024)</td>
//	<td>APIR code:</td><td>ETL0018AU</td>
//	<td>Currency:</td><td>AUD</td>
//
// plus the fund name in the page's h1.mt-2 heading. Parsing works on the
// captured HTML rather than the live page, so the same code serves unit tests
// and production.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FieldError reports a required field that is absent or malformed. It marks
// a structural problem with the page, which is never worth a retry.
type FieldError struct {
	Field  string
	Detail string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("parse: field %s: %s", e.Field, e.Detail)
}

// Fields holds everything extractable from one factsheet. Optional fields
// carry a found flag instead of a sentinel value.
type Fields struct {
	Price float64

	EffectiveDate time.Time
	DateFound     bool

	Symbol   string
	Name     string
	Currency string
}

// Factsheet dates look like "$1.2345 (10/01/2024)"; the date part is
// optional on some funds.
var (
	priceDateRe = regexp.MustCompile(`^\$?([\d.]+)\s*\((\d{2}/\d{2}/\d{4})\)`)
	priceOnlyRe = regexp.MustCompile(`\$?([\d.]+)`)
)

const dateLayout = "02/01/2006"

// Factsheet parses the rendered page. The exit price is the only hard
// requirement; its absence yields a *FieldError.
func Factsheet(html string) (*Fields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &FieldError{Field: "document", Detail: err.Error()}
	}

	f := &Fields{}

	priceText, ok := labelledCell(doc, "exit price:")
	if !ok {
		return nil, &FieldError{Field: "price", Detail: "no Exit Price cell on page"}
	}
	if err := f.parsePrice(priceText); err != nil {
		return nil, err
	}

	if symbol, ok := labelledCell(doc, "apir code:"); ok {
		f.Symbol = symbol
	}
	if currency, ok := labelledCell(doc, "currency:"); ok {
		f.Currency = currency
	}
	if name := strings.TrimSpace(doc.Find("h1.mt-2").First().Text()); name != "" {
		f.Name = name
	}

	return f, nil
}

func (f *Fields) parsePrice(text string) error {
	if m := priceDateRe.FindStringSubmatch(text); m != nil {
		price, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return &FieldError{Field: "price", Detail: fmt.Sprintf("non-numeric %q", m[1])}
		}
		date, err := time.ParseInLocation(dateLayout, m[2], time.UTC)
		if err != nil {
			return &FieldError{Field: "effective_date", Detail: fmt.Sprintf("bad date %q", m[2])}
		}
		f.Price = price
		f.EffectiveDate = date
		f.DateFound = true
	} else if m := priceOnlyRe.FindStringSubmatch(text); m != nil {
		price, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return &FieldError{Field: "price", Detail: fmt.Sprintf("non-numeric %q", m[1])}
		}
		f.Price = price
	} else {
		return &FieldError{Field: "price", Detail: fmt.Sprintf("unrecognised cell %q", text)}
	}

	if f.Price <= 0 {
		return &FieldError{Field: "price", Detail: fmt.Sprintf("not positive: %v", f.Price)}
	}
	return nil
}

// labelledCell finds a td whose text matches the label (case-insensitive)
// and returns the trimmed text of its next sibling cell.
func labelledCell(doc *goquery.Document, label string) (string, bool) {
	var value string
	var found bool

	doc.Find("td").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(strings.TrimSpace(s.Text())), label) {
			return true
		}
		next := s.NextAllFiltered("td").First()
		if next.Length() == 0 {
			return true
		}
		if text := strings.TrimSpace(next.Text()); text != "" {
			value = text
			found = true
			return false
		}
		return true
	})

	return value, found
}
