package upload

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	DefaultCategoryID    = "22"
	DefaultPrivacyStatus = "public"
)

var privacyStatuses = map[string]bool{
	"public":   true,
	"unlisted": true,
	"private":  true,
}

// Video is the snippet and status sent upstream with the media.
type Video struct {
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	PrivacyStatus string
}

type rawMetadata struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Tags          []string   `json:"tags"`
	CategoryID    categoryID `json:"categoryId"`
	PrivacyStatus string     `json:"privacyStatus"`
}

// categoryID accepts both "22" and 22.
type categoryID string

func (c *categoryID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = categoryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = categoryID(n.String())
	return nil
}

// ParseMetadata decodes the metadata document, checks the title and fills
// the defaults for every optional field.
func ParseMetadata(data []byte) (Video, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Video{}, &ValidationError{Reason: "malformed metadata"}
	}

	var raw rawMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return Video{}, &ValidationError{Reason: "malformed metadata"}
	}

	// The title is only checked trimmed; it is sent as given.
	if strings.TrimSpace(raw.Title) == "" {
		return Video{}, &ValidationError{Reason: "missing title"}
	}

	video := Video{
		Title:         raw.Title,
		Description:   raw.Description,
		Tags:          raw.Tags,
		CategoryID:    strings.TrimSpace(string(raw.CategoryID)),
		PrivacyStatus: strings.ToLower(strings.TrimSpace(raw.PrivacyStatus)),
	}
	if video.Tags == nil {
		video.Tags = []string{}
	}
	if video.CategoryID == "" {
		video.CategoryID = DefaultCategoryID
	}
	if video.PrivacyStatus == "" {
		video.PrivacyStatus = DefaultPrivacyStatus
	}
	if !privacyStatuses[video.PrivacyStatus] {
		return Video{}, &ValidationError{Reason: "invalid privacyStatus"}
	}

	return video, nil
}
