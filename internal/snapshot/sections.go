package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the fixed payload shape of a section.
type Kind int

const (
	// KindQuotes is a sequence of QuoteRecords.
	KindQuotes Kind = iota
	// KindFlow is a single FlowRecord.
	KindFlow
	// KindNews is a NewsPayload.
	KindNews
)

func (k Kind) String() string {
	switch k {
	case KindQuotes:
		return "quotes"
	case KindFlow:
		return "flow"
	case KindNews:
		return "news"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Section names.
const (
	IndianIndices        = "indian_indices"
	InternationalIndices = "international_indices"
	Currencies           = "currencies"
	Crypto               = "crypto"
	TopGainers           = "top_gainers"
	TopLosers            = "top_losers"
	MoversUnavailable    = "movers_unavailable"
	News                 = "news"
	Commodities          = "commodities"
	FIIDII               = "fii_dii"
)

// SectionSpec declares one section of the layout.
type SectionSpec struct {
	Name string
	Kind Kind
}

// Layout is the ordered list of sections every snapshot contains.
type Layout []SectionSpec

// DefaultLayout is the section order of the published document.
var DefaultLayout = Layout{
	{IndianIndices, KindQuotes},
	{InternationalIndices, KindQuotes},
	{Currencies, KindQuotes},
	{Crypto, KindQuotes},
	{TopGainers, KindQuotes},
	{TopLosers, KindQuotes},
	{MoversUnavailable, KindQuotes},
	{News, KindNews},
	{Commodities, KindQuotes},
	{FIIDII, KindFlow},
}

// Kind returns the declared kind of name.
func (l Layout) Kind(name string) (Kind, bool) {
	for _, s := range l {
		if s.Name == name {
			return s.Kind, true
		}
	}
	return 0, false
}

// Names returns the section names in order.
func (l Layout) Names() []string {
	names := make([]string, len(l))
	for i, s := range l {
		names[i] = s.Name
	}
	return names
}

// Section is one named payload of a snapshot.
type Section struct {
	Name    string
	Kind    Kind
	Payload any
}

// Sections is the ordered sections object of a snapshot. It marshals to a
// JSON object whose keys keep the layout order.
type Sections []Section

// Get returns the payload of the named section.
func (s Sections) Get(name string) (any, bool) {
	for _, sec := range s {
		if sec.Name == name {
			return sec.Payload, true
		}
	}
	return nil, false
}

// Quotes returns the records of a quote section, or nil if name is not one.
func (s Sections) Quotes(name string) []QuoteRecord {
	p, _ := s.Get(name)
	recs, _ := p.([]QuoteRecord)
	return recs
}

// Flow returns the flow record of name.
func (s Sections) Flow(name string) (FlowRecord, bool) {
	p, _ := s.Get(name)
	f, ok := p.(FlowRecord)
	return f, ok
}

// News returns the news payload of name.
func (s Sections) News(name string) (NewsPayload, bool) {
	p, _ := s.Get(name)
	n, ok := p.(NewsPayload)
	return n, ok
}

// MarshalJSON implements json.Marshaler.
func (s Sections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sec := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sec.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(sec.Payload)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", sec.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. The payload type of each
// section is taken from DefaultLayout; sections it does not declare are
// decoded as quote lists.
func (s *Sections) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sections: expected object, got %v", tok)
	}

	var out Sections
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("sections: expected key, got %v", tok)
		}
		kind, ok := DefaultLayout.Kind(name)
		if !ok {
			kind = KindQuotes
		}

		sec := Section{Name: name, Kind: kind}
		switch kind {
		case KindFlow:
			var f FlowRecord
			err = dec.Decode(&f)
			sec.Payload = f
		case KindNews:
			var n NewsPayload
			err = dec.Decode(&n)
			if n.Articles == nil {
				n.Articles = []Article{}
			}
			sec.Payload = n
		default:
			recs := []QuoteRecord{}
			err = dec.Decode(&recs)
			if recs == nil {
				recs = []QuoteRecord{}
			}
			sec.Payload = recs
		}
		if err != nil {
			return fmt.Errorf("section %s: %w", name, err)
		}
		out = append(out, sec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}
