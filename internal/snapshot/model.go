// Package snapshot defines the canonical market snapshot document and the
// normalization rules every provider response goes through before it
// reaches it.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// GeneratedAtLayout is the wire format of Snapshot.GeneratedAt.
const GeneratedAtLayout = "2006-01-02 15:04:05"

// DateLayout is the wire format of trading and flow dates.
const DateLayout = "2006-01-02"

// NoFlowDataNote marks a flow record for which neither the live source nor
// the fallback cache had anything.
const NoFlowDataNote = "No FII/DII data available"

// Instrument is one configured symbol of a section.
type Instrument struct {
	Symbol string `mapstructure:"symbol" json:"symbol"`
	Name   string `mapstructure:"name" json:"name,omitempty"`
}

// DisplayName returns the configured name, falling back to the symbol.
func (i Instrument) DisplayName() string {
	if i.Name == "" {
		return i.Symbol
	}
	return i.Name
}

// QuoteRecord is the normalized latest-price record of one instrument.
// Close is nil exactly when Error is set.
type QuoteRecord struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	AsOfDate  *string  `json:"as_of_date"`
	Close     *float64 `json:"close"`
	PrevClose *float64 `json:"prev_close"`
	PctChange *float64 `json:"pct_change"`
	NetChange *float64 `json:"net_change,omitempty"`
	Source    string   `json:"source"`
	Error     string   `json:"error,omitempty"`
}

// Failed reports whether the record carries no price data.
func (r QuoteRecord) Failed() bool {
	return r.Close == nil
}

// FlowRecord is the aggregate institutional activity for one date.
// Positive values are net buying, negative values net selling. Values are
// written as JSON numbers and missing ones are left out, so the no-data
// record is just {"note": ...}.
type FlowRecord struct {
	Date     string              `json:"date,omitempty"`
	FIIValue decimal.NullDecimal `json:"fii_value"`
	DIIValue decimal.NullDecimal `json:"dii_value"`
	Note     string              `json:"note,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (f FlowRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date     string      `json:"date,omitempty"`
		FIIValue json.Number `json:"fii_value,omitempty"`
		DIIValue json.Number `json:"dii_value,omitempty"`
		Note     string      `json:"note,omitempty"`
	}{
		Date:     f.Date,
		FIIValue: number(f.FIIValue),
		DIIValue: number(f.DIIValue),
		Note:     f.Note,
	})
}

func number(d decimal.NullDecimal) json.Number {
	if !d.Valid {
		return ""
	}
	return json.Number(d.Decimal.String())
}

// NoFlowData returns the sentinel record used when no flow data exists.
func NoFlowData() FlowRecord {
	return FlowRecord{Note: NoFlowDataNote}
}

// Available reports whether the record carries flow values.
func (f FlowRecord) Available() bool {
	return f.FIIValue.Valid || f.DIIValue.Valid
}

// Equal reports whether two flow records carry the same data.
func (f FlowRecord) Equal(o FlowRecord) bool {
	return f.Date == o.Date && f.Note == o.Note &&
		nullEqual(f.FIIValue, o.FIIValue) && nullEqual(f.DIIValue, o.DIIValue)
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

// ArticleSource names the publisher of an article.
type ArticleSource struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

// Article is one news article, kept in the provider's shape.
type Article struct {
	Source      ArticleSource `json:"source"`
	Author      *string       `json:"author"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	URL         string        `json:"url"`
	URLToImage  *string       `json:"urlToImage"`
	PublishedAt string        `json:"publishedAt"`
	Content     *string       `json:"content"`
}

// NewsPayload is the news section. Articles is never nil.
type NewsPayload struct {
	Status       string    `json:"status,omitempty"`
	TotalResults int       `json:"totalResults,omitempty"`
	Articles     []Article `json:"articles"`
	Error        string    `json:"error,omitempty"`
}

// NewsError builds the payload reported when the news search fails.
func NewsError(err error) NewsPayload {
	return NewsPayload{Articles: []Article{}, Error: err.Error()}
}

// Snapshot is the document produced by one run.
type Snapshot struct {
	GeneratedAt string   `json:"generated_at"`
	Sections    Sections `json:"sections"`
}

// Time parses GeneratedAt in the local time zone.
func (s Snapshot) Time() (time.Time, error) {
	return time.ParseInLocation(GeneratedAtLayout, s.GeneratedAt, time.Local)
}
