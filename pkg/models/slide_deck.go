package models

import (
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/jsonutil"
)

// SlideType is the layout of one slide.
type SlideType string

const (
	SlideTypeTitle     SlideType = "title"
	SlideTypeContent   SlideType = "content"
	SlideTypeSection   SlideType = "section"
	SlideTypeTwoColumn SlideType = "two_column"
	SlideTypeSummary   SlideType = "summary"
)

// ContentType tags one content item on a slide.
type ContentType string

const (
	ContentTypeBullet    ContentType = "bullet"
	ContentTypeParagraph ContentType = "paragraph"
	// ContentTypeNote items become speaker notes and never appear on the slide body.
	ContentTypeNote ContentType = "note"
)

// ContentItem is one bullet, paragraph, or speaker note.
type ContentItem struct {
	Type  ContentType `json:"type"`
	Text  string      `json:"text"`
	Level int         `json:"level,omitempty"`
}

// Slide is one slide in a generated deck.
type Slide struct {
	SlideType   SlideType     `json:"slide_type"`
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle,omitempty"`
	Content     []ContentItem `json:"content,omitempty"`
	LeftColumn  []ContentItem `json:"left_column,omitempty"`
	RightColumn []ContentItem `json:"right_column,omitempty"`
}

// SlideDeckMetadata describes the source document of a deck.
type SlideDeckMetadata struct {
	DocumentTitle   string   `json:"document_title"`
	Citation        string   `json:"citation,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	CommentDeadline string   `json:"comment_deadline,omitempty"`
	KeyTopics       []string `json:"key_topics,omitempty"`
}

// UnmarshalJSON accepts numbers in place of strings; models often emit dates and
// citations unquoted.
func (m *SlideDeckMetadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		DocumentTitle   jsonutil.FlexString  `json:"document_title"`
		Citation        jsonutil.FlexString  `json:"citation"`
		PublicationDate jsonutil.FlexString  `json:"publication_date"`
		CommentDeadline jsonutil.FlexString  `json:"comment_deadline"`
		KeyTopics       jsonutil.FlexStrings `json:"key_topics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = SlideDeckMetadata{
		DocumentTitle:   string(raw.DocumentTitle),
		Citation:        string(raw.Citation),
		PublicationDate: string(raw.PublicationDate),
		CommentDeadline: string(raw.CommentDeadline),
		KeyTopics:       raw.KeyTopics,
	}
	return nil
}

// SlideDeck is the structured schema the slide renderer consumes.
type SlideDeck struct {
	Slides   []Slide            `json:"slides"`
	Metadata *SlideDeckMetadata `json:"metadata"`
}

// Validate checks the structural requirements of a generated deck.
// It never repairs the input.
func (d *SlideDeck) Validate() error {
	if d.Slides == nil {
		return fmt.Errorf("missing slides array")
	}
	if len(d.Slides) == 0 {
		return fmt.Errorf("slides array is empty")
	}
	if d.Metadata == nil {
		return fmt.Errorf("missing metadata")
	}
	for i, s := range d.Slides {
		if s.Title == "" && s.SlideType != SlideTypeSection {
			return fmt.Errorf("slide %d has no title", i+1)
		}
		for _, item := range allItems(s) {
			if item.Level < 0 {
				return fmt.Errorf("slide %d has negative content level", i+1)
			}
		}
	}
	return nil
}

func allItems(s Slide) []ContentItem {
	items := make([]ContentItem, 0, len(s.Content)+len(s.LeftColumn)+len(s.RightColumn))
	items = append(items, s.Content...)
	items = append(items, s.LeftColumn...)
	items = append(items, s.RightColumn...)
	return items
}

// Notes returns the text of every note item on the slide, in order.
func (s *Slide) Notes() []string {
	var notes []string
	for _, item := range allItems(*s) {
		if item.Type == ContentTypeNote {
			notes = append(notes, item.Text)
		}
	}
	return notes
}
