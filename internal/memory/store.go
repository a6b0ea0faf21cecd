// Package memory is the query and maintenance surface over the content
// store and the similarity index. Every operation runs under the
// application's coarse lock.
package memory

// Result is one grouped search hit: a distinct section text, its best
// score and the metadata of every capture it appeared in.
type Result struct {
	Text  string           `json:"text"`
	Score float64          `json:"score"`
	Rows  []map[string]any `json:"rows"`
}

// Tag is a search facet offered to clients.
type Tag struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Transcript is one transcription section of a recording.
type Transcript struct {
	ID   string         `json:"id"`
	Text string         `json:"text"`
	Tags map[string]any `json:"tags"`
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Apps []string // app_name filter
	// Meeting restricts results to transcriptions.
	Meeting bool
	After   string // inclusive captured_at lower bound
	Before  string // inclusive captured_at upper bound
	Day     string // captured_at date prefix, YYYY-MM-DD
}

const (
	TagAppName     = "app_name"
	TagContentType = "content_type"
	TagDateBetween = "date_between"

	ContentMeeting = "Meeting"
)
