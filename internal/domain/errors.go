package domain

import "errors"

var (
	ErrFetchFailed     = errors.New("fetch failed")
	ErrSummarizeFailed = errors.New("summarize failed")
	ErrStore           = errors.New("store error")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrLLMUnavailable  = errors.New("llm unavailable")
)
