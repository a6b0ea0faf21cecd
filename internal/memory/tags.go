package memory

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseTags converts the client's JSON tag list into search options.
// date_between values are "from#to".
func ParseTags(raw string) (SearchOptions, error) {
	var opts SearchOptions
	if strings.TrimSpace(raw) == "" {
		return opts, nil
	}
	var tags []Tag
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return opts, fmt.Errorf("parse tags: %w", err)
	}
	for _, t := range tags {
		switch t.Type {
		case TagAppName:
			opts.Apps = append(opts.Apps, t.Value)
		case TagContentType:
			opts.Meeting = t.Value == ContentMeeting
		case TagDateBetween:
			from, to, ok := strings.Cut(t.Value, "#")
			if !ok {
				return opts, fmt.Errorf("parse tags: date_between %q has no separator", t.Value)
			}
			opts.After, opts.Before = from, to
		}
	}
	return opts, nil
}
