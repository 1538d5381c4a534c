package detect

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"strings"
)

const (
	// maxNGram bounds the candidate spans the suggester proposes.
	maxNGram = 4

	// featureDims is the size of the hashed feature space.
	featureDims = 1 << 18

	defaultThreshold = 0.5
	learningRate     = 0.05
)

// SpanModel scores candidate token n-grams with one binary linear
// classifier per label over hashed lexical features. Feature hashing is
// deterministic, so a saved model reproduces its scores exactly when
// loaded back.
type SpanModel struct {
	Labels    []string             `json:"labels"`
	Dims      int                  `json:"dims"`
	NGram     int                  `json:"ngram"`
	Threshold float64              `json:"threshold"`
	Weights   map[string][]float64 `json:"weights"`
	Bias      map[string]float64   `json:"bias"`
}

// NewSpanModel creates an untrained model for the given labels.
func NewSpanModel(labels []string) *SpanModel {
	m := &SpanModel{
		Labels:    labels,
		Dims:      featureDims,
		NGram:     maxNGram,
		Threshold: defaultThreshold,
		Weights:   make(map[string][]float64, len(labels)),
		Bias:      make(map[string]float64, len(labels)),
	}
	for _, l := range labels {
		m.Weights[l] = make([]float64, featureDims)
		// Start pessimistic so an untrained model predicts nothing.
		m.Bias[l] = -2
	}
	return m
}

// LoadSpanModel reads a model previously written by Save.
func LoadSpanModel(path string) (*SpanModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	var m SpanModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	if m.Dims == 0 || len(m.Labels) == 0 {
		return nil, fmt.Errorf("model %s: missing labels or dimensions", path)
	}
	for _, l := range m.Labels {
		if len(m.Weights[l]) != m.Dims {
			return nil, fmt.Errorf("model %s: weight vector for %s has wrong size", path, l)
		}
	}
	return &m, nil
}

// Save writes the model as JSON.
func (m *SpanModel) Save(path string) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write model %s: %w", path, err)
	}
	return nil
}

// candidate is one token n-gram under consideration.
type candidate struct {
	start, end int // character offsets
	features   []uint32
}

// Predict returns the labelled spans of text whose score clears the
// model threshold. Overlapping predictions are resolved in favour of
// the higher-scoring span.
func (m *SpanModel) Predict(text string) []Span {
	tokens := Tokenize(text)
	type scored struct {
		span  Span
		score float64
	}
	var hits []scored
	for _, c := range m.candidates(tokens) {
		for _, label := range m.Labels {
			score := m.score(label, c.features)
			if score >= m.Threshold {
				hits = append(hits, scored{
					span: Span{
						Text:  text[c.start:c.end],
						Label: label,
						Start: c.start,
						End:   c.end,
					},
					score: score,
				})
			}
		}
	}

	// Greedy non-overlap resolution, best score first.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	var out []Span
	for _, h := range hits {
		clash := false
		for _, kept := range out {
			if h.span.overlaps(kept) {
				clash = true
				break
			}
		}
		if !clash {
			out = append(out, h.span)
		}
	}
	sortSpans(out)
	return out
}

func sortSpans(spans []Span) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}

func (m *SpanModel) candidates(tokens []Token) []candidate {
	var out []candidate
	for i := range tokens {
		for n := 1; n <= m.NGram && i+n <= len(tokens); n++ {
			out = append(out, candidate{
				start:    tokens[i].Start,
				end:      tokens[i+n-1].End,
				features: m.featurize(tokens, i, i+n),
			})
		}
	}
	return out
}

// featurize hashes the lexical evidence for tokens[i:j]: each token's
// lowercase form and shape, the full joined phrase, the span length,
// and one token of context either side.
func (m *SpanModel) featurize(tokens []Token, i, j int) []uint32 {
	feats := make([]uint32, 0, (j-i)*2+5)
	var phrase strings.Builder
	for k := i; k < j; k++ {
		low := strings.ToLower(tokens[k].Text)
		feats = append(feats,
			m.hash("tok="+low),
			m.hash("shape="+tokenShape(tokens[k].Text)),
		)
		if phrase.Len() > 0 {
			phrase.WriteByte(' ')
		}
		phrase.WriteString(low)
	}
	feats = append(feats,
		m.hash("phrase="+phrase.String()),
		m.hash(fmt.Sprintf("len=%d", j-i)),
	)
	if i > 0 {
		feats = append(feats, m.hash("prev="+strings.ToLower(tokens[i-1].Text)))
	} else {
		feats = append(feats, m.hash("prev=<s>"))
	}
	if j < len(tokens) {
		feats = append(feats, m.hash("next="+strings.ToLower(tokens[j].Text)))
	} else {
		feats = append(feats, m.hash("next=</s>"))
	}
	return feats
}

func (m *SpanModel) hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32() % uint32(m.Dims)
}

// tokenShape abstracts a token to its character classes, e.g.
// "Smith" -> "Xxxxx", "4411" -> "dddd". Long runs are capped.
func tokenShape(s string) string {
	var sb strings.Builder
	prev := byte(0)
	run := 0
	for _, r := range s {
		var c byte
		switch {
		case r >= 'A' && r <= 'Z':
			c = 'X'
		case r >= 'a' && r <= 'z':
			c = 'x'
		case r >= '0' && r <= '9':
			c = 'd'
		default:
			c = '.'
		}
		if c == prev {
			run++
			if run > 4 {
				continue
			}
		} else {
			prev = c
			run = 1
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func (m *SpanModel) score(label string, features []uint32) float64 {
	w := m.Weights[label]
	sum := m.Bias[label]
	for _, f := range features {
		sum += w[f]
	}
	return 1 / (1 + math.Exp(-sum))
}

// trainingCandidate pairs a candidate with its gold labels.
type trainingCandidate struct {
	features []uint32
	gold     map[string]bool
}

// Update runs one pass of minibatch gradient steps over the examples
// and returns the mean logistic loss.
func (m *SpanModel) Update(rng *rand.Rand, examples []Example, batchSize int) float64 {
	var cands []trainingCandidate
	for _, ex := range examples {
		tokens := Tokenize(ex.Text)
		for _, c := range m.candidates(tokens) {
			gold := make(map[string]bool)
			for _, sp := range ex.Spans {
				if sp.Start == c.start && sp.End == c.end {
					gold[sp.Label] = true
				}
			}
			cands = append(cands, trainingCandidate{features: c.features, gold: gold})
		}
	}
	rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })

	var totalLoss float64
	for off := 0; off < len(cands); off += batchSize {
		end := off + batchSize
		if end > len(cands) {
			end = len(cands)
		}
		for _, c := range cands[off:end] {
			for _, label := range m.Labels {
				pred := m.score(label, c.features)
				target := 0.0
				if c.gold[label] {
					target = 1.0
				}
				grad := pred - target
				w := m.Weights[label]
				for _, f := range c.features {
					w[f] -= learningRate * grad
				}
				m.Bias[label] -= learningRate * grad
				totalLoss += logisticLoss(pred, target)
			}
		}
	}
	if len(cands) == 0 {
		return 0
	}
	return totalLoss / float64(len(cands)*len(m.Labels))
}

func logisticLoss(pred, target float64) float64 {
	const eps = 1e-9
	if target > 0.5 {
		return -math.Log(pred + eps)
	}
	return -math.Log(1 - pred + eps)
}

// Metrics are span-level evaluation scores.
type Metrics struct {
	Precision float64
	Recall    float64
	F1        float64
}

// Evaluate scores the model against gold spans with exact-boundary,
// exact-label matching.
func (m *SpanModel) Evaluate(examples []Example) Metrics {
	var tp, fp, fn float64
	for _, ex := range examples {
		pred := m.Predict(ex.Text)
		goldSet := make(map[Span]bool, len(ex.Spans))
		for _, g := range ex.Spans {
			goldSet[Span{Label: g.Label, Start: g.Start, End: g.End}] = true
		}
		matched := make(map[Span]bool)
		for _, p := range pred {
			key := Span{Label: p.Label, Start: p.Start, End: p.End}
			if goldSet[key] {
				tp++
				matched[key] = true
			} else {
				fp++
			}
		}
		for key := range goldSet {
			if !matched[key] {
				fn++
			}
		}
	}

	var mt Metrics
	if tp+fp > 0 {
		mt.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		mt.Recall = tp / (tp + fn)
	}
	if mt.Precision+mt.Recall > 0 {
		mt.F1 = 2 * mt.Precision * mt.Recall / (mt.Precision + mt.Recall)
	}
	return mt
}
