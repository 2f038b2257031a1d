package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"docmind/internal/answer"
	"docmind/internal/model"
	"docmind/internal/retrieval"
)

const (
	batchTopK       = 5
	noAnswerMessage = "I could not find relevant information to answer this question."
	documentRefPfx  = "document-"
)

type Searcher interface {
	Search(ctx context.Context, query string, topK int, docFilter []uint) (retrieval.Outcome, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string, chunks []retrieval.Result) answer.Answer
}

type QueryRecords interface {
	Create(ctx context.Context, record *model.QueryRecord) error
	ListRecent(ctx context.Context, limit int) ([]model.QueryRecord, error)
}

type QueryConfig struct {
	DefaultTopK   int
	QueryLogQueue string
}

type QueryService struct {
	searcher  Searcher
	answerer  Answerer
	records   QueryRecords
	publisher Publisher
	cfg       QueryConfig
}

type SearchInput struct {
	Question    string
	TopK        int
	DocumentIDs []uint
}

type SearchResult struct {
	Query        string             `json:"query"`
	Results      []retrieval.Result `json:"results"`
	TotalResults int                `json:"total_results"`
	Source       string             `json:"source"`
	Degraded     bool               `json:"degraded"`
}

type AskResult struct {
	Question       string             `json:"question"`
	Answer         string             `json:"answer"`
	Sources        []string           `json:"sources"`
	Model          string             `json:"model"`
	TokensUsed     int                `json:"tokens_used"`
	Degraded       bool               `json:"degraded"`
	Source         string             `json:"source"`
	RelevantChunks []retrieval.Result `json:"relevant_chunks"`
}

// NewQueryService wires querying. publisher may be nil, in which case query
// records are written directly.
func NewQueryService(searcher Searcher, answerer Answerer, records QueryRecords, publisher Publisher, cfg QueryConfig) *QueryService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 10
	}
	return &QueryService{
		searcher:  searcher,
		answerer:  answerer,
		records:   records,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *QueryService) Search(ctx context.Context, in SearchInput) (*SearchResult, error) {
	question, topK, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	out, err := s.searcher.Search(ctx, question, topK, in.DocumentIDs)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Query:        question,
		Results:      out.Results,
		TotalResults: len(out.Results),
		Source:       out.Source,
		Degraded:     out.Degraded,
	}, nil
}

func (s *QueryService) Ask(ctx context.Context, in SearchInput) (*AskResult, error) {
	question, topK, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	out, err := s.searcher.Search(ctx, question, topK, in.DocumentIDs)
	if err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, ErrNoRelevantChunks
	}

	ans := s.answerer.Answer(ctx, question, out.Results)
	s.record(ctx, question, ans.Text)

	return &AskResult{
		Question:       question,
		Answer:         ans.Text,
		Sources:        ans.Sources,
		Model:          ans.Model,
		TokensUsed:     ans.TokensUsed,
		Degraded:       ans.Degraded || out.Degraded,
		Source:         out.Source,
		RelevantChunks: out.Results,
	}, nil
}

// BatchRun answers every question against the referenced documents. Refs
// look like "document-<id>"; other refs are ignored. With no valid ref all
// documents are searched.
func (s *QueryService) BatchRun(ctx context.Context, documentRefs, questions []string) ([]string, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: questions are required", ErrInvalidInput)
	}
	docIDs := ParseDocumentRefs(documentRefs)
	log.Info().Interface("document_ids", docIDs).Int("questions", len(questions)).Msg("batch run")

	answers := make([]string, 0, len(questions))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			answers = append(answers, noAnswerMessage)
			continue
		}
		out, err := s.searcher.Search(ctx, q, batchTopK, docIDs)
		if err != nil {
			return nil, err
		}
		if len(out.Results) == 0 {
			answers = append(answers, noAnswerMessage)
			continue
		}
		ans := s.answerer.Answer(ctx, q, out.Results)
		s.record(ctx, q, ans.Text)
		answers = append(answers, ans.Text)
	}
	return answers, nil
}

func (s *QueryService) RecentQueries(ctx context.Context, limit int) ([]model.QueryRecord, error) {
	return s.records.ListRecent(ctx, limit)
}

// ParseDocumentRefs extracts document IDs from refs of the form
// "document-<id>".
func ParseDocumentRefs(refs []string) []uint {
	var ids []uint
	for _, ref := range refs {
		raw, ok := strings.CutPrefix(strings.TrimSpace(ref), documentRefPfx)
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			log.Warn().Str("ref", ref).Msg("invalid document reference")
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

func (s *QueryService) normalize(in SearchInput) (string, int, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return "", 0, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	topK := in.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	return question, topK, nil
}

// record stores the question and answer for auditing. Failures are logged
// and never affect the answer.
func (s *QueryService) record(ctx context.Context, question, response string) {
	rec := &model.QueryRecord{QueryText: question, Response: response}
	if s.publisher != nil {
		err := s.publisher.Publish(ctx, s.cfg.QueryLogQueue, rec)
		if err == nil {
			return
		}
		log.Warn().Err(err).Msg("publish query record failed, writing directly")
	}
	if err := s.records.Create(ctx, rec); err != nil {
		log.Error().Err(err).Msg("persist query record failed")
	}
}
