package ranking

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/kydenul/wordrank/internal/oracle"
	"github.com/kydenul/wordrank/internal/vocab"
)

// FamilyEntry is one row of Output.Ranked: a distinct lemma family's
// representative and its similarity to the target.
type FamilyEntry struct {
	FamilyKey      string
	Representative string
	Similarity     float64
}

// Output is the Ranking Engine's immutable-after-build result, per
// spec.md §3.
type Output struct {
	TargetWord   string
	TargetVec    []float32
	Ranked       []FamilyEntry
	RankOfFamily map[string]int // family_key -> 1-based rank
	TotalWords   int
}

// SelectTarget implements spec.md §4.2's target selection: a
// caller-supplied word is lowercased and validated against the Oracle;
// an empty request picks uniformly at random from the meaningful pool.
func SelectTarget(cache *vocab.Cache, orc oracle.Oracle, requested string) (string, error) {
	if requested != "" {
		word := strings.ToLower(strings.TrimSpace(requested))
		if !orc.HasVector(word) {
			return "", ErrNoVectorForTarget
		}
		return word, nil
	}

	if len(cache.Meaningful) == 0 {
		return "", ErrNoVectorForTarget
	}
	return cache.Meaningful[rand.Intn(len(cache.Meaningful))], nil //nolint:gosec
}

// Build is the Ranking Engine's sole operation: spec.md §4.2's
// build(target_word) -> RankingOutput, a pure function of the target and
// the Vocabulary Cache.
func Build(cache *vocab.Cache, orc oracle.Oracle, targetWord string) (*Output, error) {
	targetWord = strings.ToLower(strings.TrimSpace(targetWord))

	targetVec, err := targetVector(cache, orc, targetWord)
	if err != nil {
		return nil, err
	}

	sims := batchSimilarity(targetVec, cache.Vecs)

	type best struct {
		word string
		sim  float64
	}
	bestByFamily := make(map[string]best, len(cache.FamilyKey))

	for i, sim := range sims {
		word := cache.VecWords[i]
		fk := cache.FamilyKey[word]
		if fk == "" {
			fk = word
		}
		if cur, ok := bestByFamily[fk]; !ok || sim > cur.sim {
			bestByFamily[fk] = best{word: word, sim: sim}
		}
	}

	ranked := make([]FamilyEntry, 0, len(bestByFamily))
	for fk, b := range bestByFamily {
		ranked = append(ranked, FamilyEntry{FamilyKey: fk, Representative: b.word, Similarity: b.sim})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].Representative < ranked[j].Representative
	})

	rankOfFamily := make(map[string]int, len(ranked))
	for i, entry := range ranked {
		rankOfFamily[entry.FamilyKey] = i + 1
	}

	return &Output{
		TargetWord:   targetWord,
		TargetVec:    targetVec,
		Ranked:       ranked,
		RankOfFamily: rankOfFamily,
		TotalWords:   len(ranked),
	}, nil
}

func targetVector(cache *vocab.Cache, orc oracle.Oracle, targetWord string) ([]float32, error) {
	if idx, ok := cache.IndexOf(targetWord); ok {
		return cache.Vecs[idx], nil
	}

	vec, ok := orc.Vector(targetWord)
	if !ok {
		return nil, ErrNoVectorForTarget
	}
	return l2Normalize(vec), nil
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Resolution is the result of resolving one guess against an Output.
type Resolution struct {
	Rank       int
	Similarity float64
	IsCorrect  bool
	Estimated  bool
}

// Resolve implements spec.md §4.2's guess resolution: an O(1) exact path
// when the guess's family is already in rank_of_family, and a
// counting-based estimated path otherwise.
func Resolve(out *Output, cache *vocab.Cache, orc oracle.Oracle, guess string) (Resolution, error) {
	guess = strings.ToLower(strings.TrimSpace(guess))

	if !orc.HasVector(guess) {
		return Resolution{}, ErrUnknownWord
	}

	fk := cache.FamilyKey[guess]
	if fk == "" {
		fk = orc.Lemma(guess)
	}

	if rank, ok := out.RankOfFamily[fk]; ok {
		sim := out.Ranked[rank-1].Similarity
		return Resolution{Rank: rank, Similarity: sim, IsCorrect: rank == 1}, nil
	}

	vec, ok := orc.Vector(guess)
	if !ok {
		return Resolution{}, ErrUnknownWord
	}
	sim := cosineSimilarity(l2Normalize(vec), out.TargetVec)

	rank := 1
	for _, entry := range out.Ranked {
		if entry.Similarity > sim {
			rank++
		}
	}

	return Resolution{Rank: rank, Similarity: sim, IsCorrect: rank == 1, Estimated: true}, nil
}

// Hint implements spec.md §4.2's hint algorithm: halve the best rank
// achieved so far, backing off toward rank 1 until an un-hinted
// representative is found.
func Hint(out *Output, bestRank int, alreadyHinted map[string]bool) (FamilyEntry, bool) {
	if out.TotalWords == 0 {
		return FamilyEntry{}, false
	}
	if bestRank <= 0 || bestRank > out.TotalWords {
		bestRank = out.TotalWords
	}

	r := bestRank / 2
	if r < 1 {
		r = 1
	}

	for r >= 1 {
		entry := out.Ranked[r-1]
		if !alreadyHinted[entry.Representative] {
			return entry, true
		}
		r--
	}
	return FamilyEntry{}, false
}
