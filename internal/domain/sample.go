package domain

import "time"

// SampleArticle is substituted when the headline source yields nothing, so a
// cycle always has at least one item to work with.
func SampleArticle(now time.Time) RawArticle {
	return RawArticle{
		Title:       "Sample: Fed cuts rate by 25 bps",
		URL:         "https://example.com/fed-cut",
		Source:      "ExampleNews",
		PublishedAt: FormatTime(now),
		Content:     "The Fed lowered rates by 25 basis points citing slowing growth.",
	}
}
