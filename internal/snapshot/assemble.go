package snapshot

import "time"

// Assemble builds the snapshot from the fetched section payloads. It is
// pure: every section of layout is emitted in layout order, sections that
// produced nothing get the empty payload of their kind, and payloads for
// names outside the layout are dropped.
func Assemble(layout Layout, payloads map[string]any, at time.Time) Snapshot {
	sections := make(Sections, 0, len(layout))
	for _, spec := range layout {
		sections = append(sections, Section{
			Name:    spec.Name,
			Kind:    spec.Kind,
			Payload: normalize(spec.Kind, payloads[spec.Name]),
		})
	}

	return Snapshot{
		GeneratedAt: at.Truncate(time.Second).Format(GeneratedAtLayout),
		Sections:    sections,
	}
}

// normalize coerces a payload to the fixed shape of kind. A payload of the
// wrong shape is treated as missing.
func normalize(kind Kind, payload any) any {
	switch kind {
	case KindFlow:
		switch f := payload.(type) {
		case FlowRecord:
			return f
		case *FlowRecord:
			if f != nil {
				return *f
			}
		}
		return NoFlowData()
	case KindNews:
		var n NewsPayload
		switch p := payload.(type) {
		case NewsPayload:
			n = p
		case *NewsPayload:
			if p != nil {
				n = *p
			}
		}
		if n.Articles == nil {
			n.Articles = []Article{}
		}
		return n
	default:
		recs, _ := payload.([]QuoteRecord)
		if recs == nil {
			return []QuoteRecord{}
		}
		return recs
	}
}
