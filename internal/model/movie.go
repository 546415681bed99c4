package model

// MovieMetadata rich per-movie record, one line of the metadata file and one
// document in the document store.
type MovieMetadata struct {
	ID                  int64    `json:"id"`
	Title               *string  `json:"title"`
	Tagline             *string  `json:"tagline"`
	Overview            *string  `json:"overview"`
	PosterURL           *string  `json:"posterUrl"`
	Runtime             *float64 `json:"runtime"`
	ReleaseDate         *string  `json:"releaseDate"`
	Status              *string  `json:"status"`
	Budget              *float64 `json:"budget"`
	Revenue             *float64 `json:"revenue"`
	Director            *string  `json:"director"`
	Cast                []string `json:"cast"`
	Genres              []string `json:"genres"`
	ProductionCompanies []string `json:"productionCompanies"`
	ProductionCountries []string `json:"productionCountries"`
	SpokenLanguages     []string `json:"spokenLanguages"`
}

// MovieEmbedding one line of the embedding file.
type MovieEmbedding struct {
	ID      int64            `json:"id"`
	Vector  []float32        `json:"vector"`
	Payload EmbeddingPayload `json:"payload"`
}

// EmbeddingPayload lean fields shipped alongside each vector in the embedding file.
type EmbeddingPayload struct {
	Title       string  `json:"title"`
	PosterURL   *string `json:"posterUrl"`
	VoteAverage float64 `json:"vote_average"`
}

// MoviePayload denormalized projection stored with each vector, enough to
// render list and recommendation items without a document lookup.
type MoviePayload struct {
	Title       string  `json:"title"`
	PosterURL   *string `json:"posterUrl"`
	VoteAverage float64 `json:"vote_average"`
}

// VectorPoint vector-store record.
type VectorPoint struct {
	ID      int64        `json:"id"`
	Vector  []float32    `json:"vector,omitempty"`
	Payload MoviePayload `json:"payload"`
}

// ScoredPoint similarity search hit.
type ScoredPoint struct {
	ID      int64        `json:"id"`
	Score   float64      `json:"score"`
	Payload MoviePayload `json:"payload"`
}

// MovieSummary list item returned by GET /movies.
type MovieSummary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	PosterURL   *string `json:"posterUrl"`
	VoteAverage float64 `json:"voteAverage"`
}

// Recommendation similar movie returned by GET /movies/:id/recommendations.
type Recommendation struct {
	ID          int64   `json:"id"`
	Score       float64 `json:"score"`
	Title       string  `json:"title"`
	PosterURL   *string `json:"posterUrl"`
	VoteAverage float64 `json:"voteAverage"`
}

// SummaryFromPoint projects a stored vector point onto a list item.
func SummaryFromPoint(p VectorPoint) MovieSummary {
	return MovieSummary{
		ID:          p.ID,
		Title:       p.Payload.Title,
		PosterURL:   p.Payload.PosterURL,
		VoteAverage: p.Payload.VoteAverage,
	}
}

// RecommendationFromHit projects a search hit onto a recommendation.
func RecommendationFromHit(h ScoredPoint) Recommendation {
	return Recommendation{
		ID:          h.ID,
		Score:       h.Score,
		Title:       h.Payload.Title,
		PosterURL:   h.Payload.PosterURL,
		VoteAverage: h.Payload.VoteAverage,
	}
}
