// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package analysis

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Extractive summary parameters.
const (
	SummarySentences   = 3
	SummaryMaxChars    = 500
	TopicCount         = 5
	SentimentThreshold = 0.15
	firstSentenceBoost = 1.5
	lastSentenceBoost  = 1.2
	minKeywordLength   = 4 // words must be longer than 3 characters to score
	minTopicLength     = 5 // and longer than 4 to be a topic
)

// ExtractiveBackend names the local summarizer in reports.
const ExtractiveBackend = "extractive"

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// Extractive is the built-in summarizer. It needs no model: sentences are
// ranked by the normalised frequency of their content words and the best
// ones are returned in their original order.
type Extractive struct{}

// NewExtractive returns the extractive summarizer.
func NewExtractive() *Extractive {
	return &Extractive{}
}

// Name identifies the backend.
func (e *Extractive) Name() string {
	return ExtractiveBackend
}

// Summarize never fails; empty text yields the no-speech placeholder.
func (e *Extractive) Summarize(_ context.Context, text string, _ string) (model.TextInsights, error) {
	return TextInsightsOf(text), nil
}

// TextInsightsOf computes the extractive summary, topics and sentiment.
func TextInsightsOf(text string) model.TextInsights {
	text = strings.TrimSpace(text)
	if text == "" {
		insights := model.EmptyTextInsights()
		insights.Backend = ExtractiveBackend
		return insights
	}

	sentences := SplitSentences(text)
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	freq := map[string]float64{}
	maxFreq := 0.0
	for _, w := range words {
		if isStopword(w) || utf8.RuneCountInString(w) < minKeywordLength {
			continue
		}
		freq[w]++
		if freq[w] > maxFreq {
			maxFreq = freq[w]
		}
	}
	for w := range freq {
		freq[w] /= maxFreq
	}

	type scored struct {
		index int
		score float64
	}
	var ranked []scored
	for i, s := range sentences {
		var sum float64
		var n int
		for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
			if f, ok := freq[w]; ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			continue
		}
		switch {
		case i == 0:
			sum *= firstSentenceBoost
		case i == len(sentences)-1:
			sum *= lastSentenceBoost
		}
		ranked = append(ranked, scored{i, sum / float64(n)})
	}

	var selected []string
	if len(ranked) == 0 {
		selected = firstN(sentences, SummarySentences)
	} else {
		sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
		if len(ranked) > SummarySentences {
			ranked = ranked[:SummarySentences]
		}
		sort.Slice(ranked, func(a, b int) bool { return ranked[a].index < ranked[b].index })
		for _, r := range ranked {
			selected = append(selected, sentences[r.index])
		}
	}

	if selected == nil {
		selected = []string{}
	}

	score := SentimentScore(words)
	return model.TextInsights{
		Summary:        truncate(strings.Join(selected, " "), SummaryMaxChars),
		KeyPoints:      selected,
		Topics:         Topics(words, TopicCount),
		Sentiment:      SentimentLabel(score),
		SentimentScore: score,
		WordCount:      len(strings.Fields(text)),
		SentenceCount:  len(sentences),
		Backend:        ExtractiveBackend,
	}
}

// SplitSentences splits on ., ! and ?, keeping the terminator.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" && wordPattern.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}

// Topics returns the most frequent non-stopwords longer than four
// characters. Ties keep first-seen order.
func Topics(words []string, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, w := range words {
		if isStopword(w) || utf8.RuneCountInString(w) < minTopicLength {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	out := firstN(order, n)
	if out == nil {
		return []string{}
	}
	return out
}

// SentimentScore is a polarity in [-1, 1] from the positive and negative
// word lists.
func SentimentScore(words []string) float64 {
	var pos, neg int
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		} else if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// SentimentLabel applies the ±0.15 thresholds.
func SentimentLabel(score float64) string {
	switch {
	case score > SentimentThreshold:
		return model.SentimentPositive
	case score < -SentimentThreshold:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

func firstN(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

var stopwords = toSet(strings.Fields(`
i me my myself we our ours ourselves you your yours yourself yourselves he him
his himself she her hers herself it its itself they them their theirs themselves
what which who whom this that these those am is are was were be been being have
has had having do does did doing a an the and but if or because as until while
of at by for with about against between into through during before after above
below to from up down in out on off over under again further then once here
there when where why how all any both each few more most other some such no nor
not only own same so than too very s t can will just don should now d ll m o re
ve y ain aren couldn didn doesn hadn hasn haven isn ma mightn mustn needn shan
shouldn wasn weren won wouldn also would could really going know like yeah okay
`))

var positiveWords = toSet(strings.Fields(`
good great excellent amazing awesome wonderful fantastic love loved lovely best
better happy glad nice beautiful brilliant perfect enjoy enjoyed fun exciting
excited success successful positive win winning easy helpful impressive
incredible favorite recommend superb outstanding pleasant delighted thanks
thank cool strong safe calm
`))

var negativeWords = toSet(strings.Fields(`
bad terrible awful horrible worst worse hate hated sad angry poor ugly boring
disappointing disappointed problem problems fail failed failure wrong negative
difficult hard broken annoying useless painful pain fear afraid scary danger
dangerous sick weak lose losing lost crash crashed hurt
`))
