// Package corpus defines the legal document model and readers for the raw
// corpus files (one large JSON array of laws, each holding its articles).
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedRecord marks corpus input that is not syntactically usable:
// a non-array root or an element that is not valid JSON. Elements that parse
// but fail to decode into a Law are counted and skipped instead; the stream
// never aborts on a single bad record.
var ErrMalformedRecord = errors.New("malformed source record")

// Law is a legal instrument with its versioned articles. Immutable once read.
type Law struct {
	ID          FlexString `json:"element_id"`
	Name        string     `json:"decision_name"`
	Number      FlexString `json:"law_number"`
	Year        FlexString `json:"law_year"`
	Date        string     `json:"law_date"`
	Type        string     `json:"law_type"`
	Address     string     `json:"law_address"`
	Status      string     `json:"status"`
	Categories  []string   `json:"categories"`
	Keywords    []string   `json:"keywords"`
	SubKeywords []string   `json:"keywords2"`
	Articles    []Article  `json:"articles"`
}

// Article is one versioned article of a law. OriginalContent is populated only
// when the article was later amended or canceled and its original text was
// preserved separately.
type Article struct {
	Number          FlexString `json:"article_number"`
	Title           string     `json:"article_title"`
	IsCanceled      BoolFlag   `json:"is_canceled"`
	WorkingDate     string     `json:"working_date"`
	CancelingDate   string     `json:"canceling_date"`
	Content         string     `json:"article_content"`
	OriginalContent string     `json:"original_content"`
}

// FlexString decodes JSON strings, numbers and null into a plain string.
// The source corpus is inconsistent about identifier and number fields.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// BoolFlag decodes boolean-like values: true/false, 0/1 and "0"/"1".
type BoolFlag bool

func (b *BoolFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = false
	case bytes.Equal(data, []byte("true")):
		*b = true
	case bytes.Equal(data, []byte("false")):
		*b = false
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		*b = BoolFlag(s == "1" || strings.EqualFold(s, "true"))
	default:
		n, err := strconv.Atoi(string(data))
		if err != nil {
			return err
		}
		*b = BoolFlag(n != 0)
	}
	return nil
}

func (b BoolFlag) Bool() bool { return bool(b) }

// ChunkPayload is the denormalized Law+Article metadata stored alongside each
// vector for filtering and display. The schema is fixed; Extra carries any
// forward-compatible metadata that has no dedicated field yet.
type ChunkPayload struct {
	LawID       string   `json:"law_id"`
	LawName     string   `json:"law_name"`
	LawNumber   string   `json:"law_number,omitempty"`
	LawYear     string   `json:"law_year,omitempty"`
	LawDate     string   `json:"law_date,omitempty"`
	LawType     string   `json:"law_type,omitempty"`
	LawAddress  string   `json:"law_address,omitempty"`
	LawStatus   string   `json:"law_status,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	SubKeywords []string `json:"sub_keywords,omitempty"`

	ArticleNumber string `json:"article_number,omitempty"`
	ArticleTitle  string `json:"article_title"`
	Status        string `json:"status"`
	WorkingDate   string `json:"working_date,omitempty"`
	CancelingDate string `json:"canceling_date,omitempty"`

	GroupKey    string `json:"article_group_id"`
	ChunkIndex  int    `json:"chunk_index"`
	ChunkTotal  int    `json:"chunk_total"`
	TextContent string `json:"text_content"`

	Extra map[string]string `json:"extra,omitempty"`
}
