package taskapi

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

// Classifier is a multinomial naive Bayes over word counts, trained from a
// task_description,priority CSV. It stands in for the original joblib
// TF-IDF pipeline; accuracy is a non-goal.
type Classifier struct {
	classes    []string
	classDocs  map[string]int
	wordCounts map[string]map[string]int
	classTotal map[string]int
	vocab      map[string]struct{}
	totalDocs  int
}

// TrainFromCSV builds a classifier from path. The first row is treated as a
// header. Rows need at least two columns: description, priority.
func TrainFromCSV(path string) (*Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read training csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("training csv has no data rows")
	}

	c := &Classifier{
		classDocs:  make(map[string]int),
		wordCounts: make(map[string]map[string]int),
		classTotal: make(map[string]int),
		vocab:      make(map[string]struct{}),
	}

	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		c.observe(row[0], strings.TrimSpace(row[1]))
	}

	if c.totalDocs == 0 {
		return nil, errors.New("training csv has no usable rows")
	}
	return c, nil
}

func (c *Classifier) observe(text, label string) {
	if label == "" {
		return
	}
	if _, ok := c.classDocs[label]; !ok {
		c.classes = append(c.classes, label)
		c.wordCounts[label] = make(map[string]int)
	}
	c.classDocs[label]++
	c.totalDocs++

	for _, w := range tokenize(text) {
		c.wordCounts[label][w]++
		c.classTotal[label]++
		c.vocab[w] = struct{}{}
	}
}

// Predict returns the most likely priority label for text.
func (c *Classifier) Predict(text string) string {
	words := tokenize(text)
	vocabSize := len(c.vocab)

	best := ""
	bestScore := math.Inf(-1)

	for _, class := range c.classes {
		// log prior + add-one smoothed log likelihoods
		score := math.Log(float64(c.classDocs[class]) / float64(c.totalDocs))
		denom := float64(c.classTotal[class] + vocabSize)
		for _, w := range words {
			score += math.Log(float64(c.wordCounts[class][w]+1) / denom)
		}
		if score > bestScore {
			bestScore = score
			best = class
		}
	}
	return best
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
