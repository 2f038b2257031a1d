// Package embedder turns text into fixed-length vectors. Failures never
// surface as errors: affected inputs get zero vectors and the result is
// flagged as degraded.
package embedder

import (
	"context"

	"github.com/rs/zerolog/log"
)

const (
	DefaultDimension = 384
	DefaultBatchSize = 100
)

type Backend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Cache stores vectors keyed by model and text.
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Set(ctx context.Context, model, text string, vec []float32)
}

type Result struct {
	Vectors  [][]float32
	Model    string
	Degraded bool
}

type Service struct {
	backend   Backend
	cache     Cache
	dimension int
	batchSize int
}

type Option func(*Service)

func WithDimension(dim int) Option {
	return func(s *Service) {
		if dim > 0 {
			s.dimension = dim
		}
	}
}

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// New builds the service. A nil backend is allowed and yields degraded zero
// vectors for every input.
func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		dimension: DefaultDimension,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Enabled() bool { return s.backend != nil }

func (s *Service) Dimension() int { return s.dimension }

func (s *Service) Model() string {
	if s.backend == nil {
		return "none"
	}
	return s.backend.Model()
}

// Embed returns exactly one vector per text, in input order.
func (s *Service) Embed(ctx context.Context, texts []string) Result {
	res := Result{Vectors: make([][]float32, len(texts)), Model: s.Model()}
	if len(texts) == 0 {
		return res
	}
	if s.backend == nil {
		log.Warn().Int("texts", len(texts)).Msg("no embedding backend configured, using zero vectors")
		for i := range texts {
			res.Vectors[i] = s.zero()
		}
		res.Degraded = true
		return res
	}

	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		if s.cache != nil {
			if vec, ok := s.cache.Get(ctx, res.Model, text); ok {
				res.Vectors[i] = vec
				continue
			}
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := min(start+s.batchSize, len(pending))
		idx := pending[start:end]

		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vectors, err := s.backend.EmbedBatch(ctx, batch)
		if err == nil && len(vectors) != len(batch) {
			log.Error().Int("want", len(batch)).Int("got", len(vectors)).Msg("embedding backend returned wrong vector count")
			vectors = nil
		}
		if err != nil || vectors == nil {
			if err != nil {
				log.Error().Err(err).Str("model", res.Model).Int("batch", len(batch)).Msg("embedding batch failed, using zero vectors")
			}
			for _, i := range idx {
				res.Vectors[i] = s.zero()
			}
			res.Degraded = true
			continue
		}

		for j, i := range idx {
			res.Vectors[i] = vectors[j]
			if s.cache != nil {
				s.cache.Set(ctx, res.Model, texts[i], vectors[j])
			}
		}
	}
	return res
}

// EmbedQuery embeds a single text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, bool) {
	res := s.Embed(ctx, []string{text})
	return res.Vectors[0], res.Degraded
}

func (s *Service) zero() []float32 {
	return make([]float32, s.dimension)
}
