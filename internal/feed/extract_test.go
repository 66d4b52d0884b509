package feed

import (
	"feedcloud/internal/components/telemetry"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name     string
		payloads []string
		expected []string
		warnings int
	}{
		{
			name:     "single item",
			payloads: []string{`{"data":{"item":[{"uri":"http://x/1"}]}}`},
			expected: []string{"http://x/1"},
		},
		{
			name: "malformed payload is skipped",
			payloads: []string{
				`{"data":{"item":[{"uri":"http://bad/1"}`,
				`{"data":{"item":[{"uri":"http://good/1"},{"uri":"http://good/2"}]}}`,
			},
			expected: []string{"http://good/1", "http://good/2"},
			warnings: 1,
		},
		{
			name: "missing and empty uris are skipped silently",
			payloads: []string{
				`{"data":{"item":[{"id":1},{"uri":""},{"uri":"http://x/2","goto":"av"},{"uri":5}]}}`,
			},
			expected: []string{"http://x/2"},
		},
		{
			name: "order and duplicates preserved",
			payloads: []string{
				`{"code":0,"data":{"item":[{"uri":"http://x/b"},{"uri":"http://x/a"}]}}`,
				`{"data":{"item":[{"uri":"http://x/a"}],"business_card":null}}`,
			},
			expected: []string{"http://x/b", "http://x/a", "http://x/a"},
		},
		{
			name:     "missing data",
			payloads: []string{`{"code":-352,"message":"risk control"}`, `{"data":null}`, `{"data":{}}`},
			expected: []string{},
		},
		{
			name:     "no payloads",
			payloads: nil,
			expected: []string{},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			rec := &telemetry.Recorder{}
			uris := NewExtractor(rec).Extract(test.payloads)
			if diff := cmp.Diff(test.expected, uris); diff != "" {
				t.Fatal("unexpected uris (-want +got)\n", diff)
			}
			require.Len(t, rec.Reports("warning"), test.warnings)
		})
	}
}

func TestItemsRejectsWrongShape(t *testing.T) {
	_, err := Items(`{"data":{"item":"not a list"}}`)
	require.Error(t, err)

	_, err = Items(`[]`)
	require.Error(t, err)
}
