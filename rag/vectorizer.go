package rag

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultFeatures = 4096

// Vectorizer maps text to fixed-size term vectors with the hashing trick.
type Vectorizer struct {
	size int
}

func NewVectorizer(size int) *Vectorizer {
	if size <= 0 {
		size = DefaultFeatures
	}
	return &Vectorizer{size: size}
}

// Features returns the L2 normalised term counts of text.
// Identifiers are split on punctuation so that "cq.Workplane" also matches "workplane".
func (v *Vectorizer) Features(text string) []float64 {
	vec := make([]float64, v.size)
	for _, w := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32()%uint32(v.size))]++
	}
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine is the cosine similarity of two vectors of the same size.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
