package storage

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT,
	source TEXT,
	original_url TEXT UNIQUE,
	published_at TEXT,
	raw_text TEXT,
	tl_dr TEXT,
	summary_pro TEXT,
	evidence TEXT,
	confidence REAL,
	status TEXT,
	created_at TEXT
);
CREATE TABLE IF NOT EXISTS meta (
	k TEXT PRIMARY KEY,
	v TEXT
);
`

const (
	metaLastReset  = "llm_last_reset"
	metaCallsToday = "llm_calls_today"
)

var articleColumns = []string{
	"id", "title", "source", "original_url", "published_at", "raw_text",
	"tl_dr", "summary_pro", "evidence", "confidence", "status", "created_at",
}
