package reduce

import (
	"fmt"
	"strings"

	"github.com/go-ego/gse"
)

// Segmenter splits text into word level tokens.
type Segmenter interface {
	Segment(text string) []string
}

// DictSegmenter segments CJK text with a dictionary and an HMM for unknown words,
// it does not rely on whitespace between words.
type DictSegmenter struct {
	seg gse.Segmenter
}

// NewDictSegmenter loads the embedded simplified chinese dictionary, this
// takes a moment so a single segmenter should be reused.
func NewDictSegmenter() (*DictSegmenter, error) {
	s := &DictSegmenter{}
	err := s.seg.LoadDictEmbed()
	if err != nil {
		return nil, fmt.Errorf("load segmenter dictionary: %w", err)
	}
	return s, nil
}

func (s *DictSegmenter) Segment(text string) []string {
	return s.seg.Cut(text, true)
}

// FieldsSegmenter splits on whitespace, it is meant for text that is already segmented.
type FieldsSegmenter struct{}

func (FieldsSegmenter) Segment(text string) []string {
	return strings.Fields(text)
}
