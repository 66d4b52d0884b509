package feed

import (
	"encoding/json"
	"feedcloud/internal/components/assert"
	"feedcloud/internal/components/telemetry"
	"fmt"
)

const (
	report_extract_parse_payload = "extract.parse-payload"
	report_extract_uris          = "extract.uris"
)

// Item is a single recommended video inside a feed payload, anything besides
// the uri is ignored.
type Item struct {
	URI string `json:"uri"`
}

type payload struct {
	Data *struct {
		Item []json.RawMessage `json:"item"`
	} `json:"data"`
}

type Extractor struct {
	tel telemetry.API
}

func NewExtractor(tel telemetry.API) Extractor {
	assert.NotNil(tel)
	return Extractor{tel: telemetry.NewScopedAPI("feed", tel)}
}

// Items parses a single payload, items that are not objects or have no uri are skipped.
func Items(raw string) ([]Item, error) {
	var parsed payload
	err := json.Unmarshal([]byte(raw), &parsed)
	if err != nil {
		return nil, err
	}
	if parsed.Data == nil {
		return nil, nil
	}

	var items []Item
	for _, rawItem := range parsed.Data.Item {
		var item Item
		err := json.Unmarshal(rawItem, &item)
		if err != nil || item.URI == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Extract returns the uri of every item in payload order then item order. a
// payload that fails to parse is reported and skipped, the rest are still
// extracted. duplicates are kept.
func (e Extractor) Extract(payloads []string) []string {
	uris := []string{}
	for i, raw := range payloads {
		items, err := Items(raw)
		if err != nil {
			e.tel.ReportWarning(
				report_extract_parse_payload,
				fmt.Errorf("payload %d: %w", i, err),
			)
			continue
		}
		for _, item := range items {
			uris = append(uris, item.URI)
		}
	}
	e.tel.ReportCount(report_extract_uris, int64(len(uris)))
	return uris
}
