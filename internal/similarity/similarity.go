// Package similarity implements the text scoring used to rank facets for
// honing: token-set Jaccard, title-weighted TF-IDF cosine, and a blended
// metric that falls back to Jaccard for very short documents.
//
// A "document" here is a single string of the form "title\nbody" — the first
// line is the title and is weighted more heavily in term-frequency counting.
// All functions are pure and deterministic.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	// titleWeight multiplies term frequency for tokens in the title line.
	titleWeight = 3
	// minTokenCount is the threshold below which TF-IDF is considered
	// unstable and plain Jaccard is used instead.
	minTokenCount = 3

	tfidfWeight   = 0.9
	jaccardWeight = 0.1
)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "as": {}, "at": {}, "by": {},
	"it": {}, "this": {}, "that": {},
}

var (
	unicodeTokenRe = regexp.MustCompile(`\p{L}[\p{L}\p{N}_-]*|\p{N}+`)
	asciiTokenRe   = regexp.MustCompile(`[a-z0-9]+`)
)

// Tokenize lower-cases text and extracts runs of letters/digits.
// When removeStopwords is true a fixed English stopword set is filtered out.
// Empty input yields an empty slice; Tokenize never fails.
func Tokenize(text string, removeStopwords bool) []string {
	normalized := strings.ToLower(text)

	matches := unicodeTokenRe.FindAllString(normalized, -1)
	if len(matches) == 0 {
		matches = asciiTokenRe.FindAllString(normalized, -1)
	}

	if !removeStopwords {
		return matches
	}

	out := matches[:0:len(matches)]
	for _, tok := range matches {
		if _, skip := stopwords[tok]; !skip {
			out = append(out, tok)
		}
	}
	return out
}

// splitDoc separates the title line from the body of a document string.
func splitDoc(doc string) (title, body string) {
	if i := strings.IndexByte(doc, '\n'); i >= 0 {
		return doc[:i], doc[i+1:]
	}
	return doc, ""
}

// tokenizeDoc tokenizes title and body of a document and concatenates them.
func tokenizeDoc(doc string, removeStopwords bool) []string {
	title, body := splitDoc(doc)
	tokens := Tokenize(title, removeStopwords)
	return append(tokens, Tokenize(body, removeStopwords)...)
}

// Jaccard returns |intersection| / |union| over the token sets of a and b,
// tokenized without stopword removal. Two empty texts score 0, not NaN.
func Jaccard(a, b string) float64 {
	return jaccard(a, b, false)
}

func jaccard(a, b string, removeStopwords bool) float64 {
	setA := tokenSet(tokenizeDoc(a, removeStopwords))
	setB := tokenSet(tokenizeDoc(b, removeStopwords))
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// buildTF counts term frequencies for a document, weighting title tokens.
func buildTF(doc string, removeStopwords bool) map[string]float64 {
	title, body := splitDoc(doc)
	counts := make(map[string]float64)
	for _, tok := range Tokenize(body, removeStopwords) {
		counts[tok]++
	}
	for _, tok := range Tokenize(title, removeStopwords) {
		counts[tok] += titleWeight
	}
	return counts
}

// buildIDF builds a smoothed IDF table over the corpus:
// idf = ln((N+1)/(df+1)) + 1.
func buildIDF(corpus []string, removeStopwords bool) (map[string]float64, int) {
	df := make(map[string]int)
	for _, doc := range corpus {
		for tok := range tokenSet(tokenizeDoc(doc, removeStopwords)) {
			df[tok]++
		}
	}

	n := len(corpus)
	if n < 1 {
		n = 1
	}
	idf := make(map[string]float64, len(df))
	for tok, count := range df {
		idf[tok] = math.Log(float64(n+1)/float64(count+1)) + 1
	}
	return idf, n
}

type tfidfVector struct {
	weights map[string]float64
	norm    float64
}

func buildVector(doc string, idf map[string]float64, docCount int, removeStopwords bool) tfidfVector {
	tf := buildTF(doc, removeStopwords)
	weights := make(map[string]float64, len(tf))
	defaultIDF := math.Log(float64(docCount)+1) + 1

	var sumSquares float64
	for tok, freq := range tf {
		w, ok := idf[tok]
		if !ok {
			w = defaultIDF
		}
		v := freq * w
		weights[tok] = v
		sumSquares += v * v
	}
	return tfidfVector{weights: weights, norm: math.Sqrt(sumSquares)}
}

// TfidfCosine computes cosine similarity between the TF-IDF vectors of docA
// and docB. The IDF table is built over corpus, defaulting to [docA, docB]
// when corpus is empty. Returns 0 when either vector has zero norm; the
// result is clamped to [0,1].
func TfidfCosine(docA, docB string, corpus []string) float64 {
	if len(corpus) == 0 {
		corpus = []string{docA, docB}
	}
	const removeStopwords = true

	idf, docCount := buildIDF(corpus, removeStopwords)
	va := buildVector(docA, idf, docCount, removeStopwords)
	vb := buildVector(docB, idf, docCount, removeStopwords)

	if va.norm == 0 || vb.norm == 0 {
		return 0
	}

	small, large := va.weights, vb.weights
	if len(small) > len(large) {
		small, large = large, small
	}
	var dot float64
	for tok, v := range small {
		if other, ok := large[tok]; ok {
			dot += v * other
		}
	}
	return clamp01(dot / (va.norm * vb.norm))
}

// Similarity is the blended ranking metric: 0.9×TF-IDF cosine plus a
// 0.1×Jaccard stabilizing floor. Documents that tokenize (stopwords removed)
// to fewer than three tokens fall back to plain Jaccard, since TF-IDF is
// unstable on near-empty input.
func Similarity(docA, docB string, corpus []string) float64 {
	tokensA := tokenizeDoc(docA, true)
	tokensB := tokenizeDoc(docB, true)
	jac := jaccard(docA, docB, false)

	if len(tokensA) < minTokenCount || len(tokensB) < minTokenCount {
		return clamp01(jac)
	}

	tfidf := TfidfCosine(docA, docB, corpus)
	if math.IsNaN(tfidf) || math.IsInf(tfidf, 0) || tfidf <= 0 {
		return clamp01(jac)
	}

	return clamp01(tfidf*tfidfWeight + jac*jaccardWeight)
}

// Ranked pairs an identifier with its similarity score.
type Ranked struct {
	ID    string
	Score float64
}

// Rank scores every candidate document against target and returns them
// sorted by score descending, ties broken by id for determinism. The corpus
// for IDF is the candidate set plus the target.
func Rank(target string, candidates map[string]string) []Ranked {
	corpus := make([]string, 0, len(candidates)+1)
	for _, doc := range candidates {
		corpus = append(corpus, doc)
	}
	corpus = append(corpus, target)

	out := make([]Ranked, 0, len(candidates))
	for id, doc := range candidates {
		out = append(out, Ranked{ID: id, Score: Similarity(target, doc, corpus)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
