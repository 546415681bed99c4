package model

// MergedMovie metadata joined with its embedding, which may be missing.
type MergedMovie struct {
	Metadata  MovieMetadata
	Embedding *MovieEmbedding
}

// MergedSet merged records keyed by movie ID, iterated in the order the IDs
// first appeared in the metadata file.
type MergedSet struct {
	order   []int64
	records map[int64]*MergedMovie
}

func NewMergedSet() *MergedSet {
	return &MergedSet{records: make(map[int64]*MergedMovie)}
}

// PutMetadata inserts or replaces the metadata for m.ID. A replaced record
// keeps its position and drops any embedding attached so far.
func (s *MergedSet) PutMetadata(m MovieMetadata) {
	if rec, ok := s.records[m.ID]; ok {
		rec.Metadata = m
		rec.Embedding = nil
		return
	}
	s.order = append(s.order, m.ID)
	s.records[m.ID] = &MergedMovie{Metadata: m}
}

// AttachEmbedding attaches e to a known record and reports whether the ID was known.
func (s *MergedSet) AttachEmbedding(e MovieEmbedding) bool {
	rec, ok := s.records[e.ID]
	if !ok {
		return false
	}
	rec.Embedding = &e
	return true
}

func (s *MergedSet) Get(id int64) (*MergedMovie, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

func (s *MergedSet) Len() int { return len(s.order) }

// IDs returns the IDs in insertion order.
func (s *MergedSet) IDs() []int64 {
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}

// WithEmbedding counts records that carry an embedding.
func (s *MergedSet) WithEmbedding() int {
	n := 0
	for _, rec := range s.records {
		if rec.Embedding != nil {
			n++
		}
	}
	return n
}
