package prompts

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type promptFile struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	HardTimeoutMs int64   `json:"hardTimeoutMs"`
	Order         int     `json:"order"`
	Weight        float64 `json:"weight"`
}

// Decode reads a JSON array of prompts. Entries keep their position as order
// when none is given.
func Decode(r io.Reader) ([]Prompt, error) {
	var entries []promptFile
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode prompts: %w", err)
	}

	prompts := make([]Prompt, 0, len(entries))
	for i, entry := range entries {
		if entry.ID == "" {
			return nil, fmt.Errorf("prompt %d has no id", i)
		}
		if entry.Text == "" {
			return nil, fmt.Errorf("prompt %s has no text", entry.ID)
		}

		order := entry.Order
		if order == 0 {
			order = i + 1
		}
		prompts = append(prompts, Prompt{
			ID:          entry.ID,
			Text:        entry.Text,
			HardTimeout: time.Duration(entry.HardTimeoutMs) * time.Millisecond,
			Order:       order,
			Weight:      entry.Weight,
		})
	}
	return prompts, nil
}
