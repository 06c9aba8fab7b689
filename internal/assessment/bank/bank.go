// Package bank holds the fixed question banks. Questions are embedded so the
// binary is self-contained; image references point at static assets served
// elsewhere.
package bank

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed questions.json
var learnerBank []byte

//go:embed plates.json
var plateBank []byte

// Question is one bank entry. Correct never leaves the server; papers strip
// it before presentation.
type Question struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
	HasImage bool     `json:"hasImage"`
	Image    string   `json:"image,omitempty"`
	Category string   `json:"category"`
}

// Bank partitions questions into the two sampling pools: those requiring an
// image and text-only ones.
type Bank struct {
	Image []Question
	Text  []Question

	byID map[int]Question
}

// Learner loads the written-test bank.
func Learner() (*Bank, error) { return load(learnerBank) }

// ColorVision loads the plate bank. All plates carry images, so the text
// pool is empty.
func ColorVision() (*Bank, error) { return load(plateBank) }

func load(raw []byte) (*Bank, error) {
	var questions []Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}

	b := &Bank{byID: make(map[int]Question, len(questions))}
	for _, q := range questions {
		if len(q.Options) == 0 || q.Correct < 0 || q.Correct >= len(q.Options) {
			return nil, fmt.Errorf("question %d has no valid correct option", q.ID)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		b.byID[q.ID] = q
		if q.HasImage {
			b.Image = append(b.Image, q)
		} else {
			b.Text = append(b.Text, q)
		}
	}
	return b, nil
}

// Lookup returns the bank entry for an id.
func (b *Bank) Lookup(id int) (Question, bool) {
	q, ok := b.byID[id]
	return q, ok
}
