package handler

import "FinMuse/internal/domain"

type NewsItemResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	PublishedAt string  `json:"published_at"`
	Summary     *string `json:"summary"`
	Confidence  float64 `json:"confidence"`
	Status      string  `json:"status"`
}

type NewsMeta struct {
	Count       int    `json:"count"`
	GeneratedAt string `json:"generated_at"`
}

type NewsResponse struct {
	Items []NewsItemResponse `json:"items"`
	Meta  NewsMeta           `json:"meta"`
}

type ArticleResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Source      string            `json:"source"`
	OriginalURL string            `json:"original_url"`
	PublishedAt string            `json:"published_at"`
	RawText     string            `json:"raw_text"`
	TLDR        *string           `json:"tl_dr"`
	SummaryPro  *string           `json:"summary_pro"`
	Evidence    []domain.Evidence `json:"evidence"`
	Confidence  *float64          `json:"confidence"`
	Status      string            `json:"status"`
	CreatedAt   string            `json:"created_at"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Time          string `json:"time"`
	LLMCallsToday int    `json:"llm_calls_today"`
}

type ScrapeResponse struct {
	Status string             `json:"status"`
	Report domain.CycleReport `json:"report"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func newsItemFrom(a domain.Article) NewsItemResponse {
	conf := domain.PublishThreshold
	if a.Confidence != nil {
		conf = *a.Confidence
	}
	return NewsItemResponse{
		ID:          a.ID,
		Title:       a.Title,
		Source:      a.Source,
		PublishedAt: a.PublishedAt,
		Summary:     a.TLDR,
		Confidence:  conf,
		Status:      string(a.Status),
	}
}

func articleFrom(a domain.Article) ArticleResponse {
	evidence := a.Evidence
	if evidence == nil {
		evidence = []domain.Evidence{}
	}
	return ArticleResponse{
		ID:          a.ID,
		Title:       a.Title,
		Source:      a.Source,
		OriginalURL: a.OriginalURL,
		PublishedAt: a.PublishedAt,
		RawText:     a.RawText,
		TLDR:        a.TLDR,
		SummaryPro:  a.SummaryPro,
		Evidence:    evidence,
		Confidence:  a.Confidence,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
	}
}
