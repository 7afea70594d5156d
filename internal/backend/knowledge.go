// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// =============================================================================
// KNOWLEDGE SEARCH
// =============================================================================

// Knowledge entry types reported by the backend.
const (
	KnowledgeGuideline    = "regulatory_guideline"
	KnowledgeScenario     = "compliance_scenario"
	KnowledgeBestPractice = "best_practice"
)

// KnowledgeEntry is one hit. Guidelines and scenarios carry Key and
// Content; best practices carry Category and Practices.
type KnowledgeEntry struct {
	Type      string          `json:"type"`
	Key       string          `json:"key,omitempty"`
	Category  string          `json:"category,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Practices []string        `json:"practices,omitempty"`
}

// Name returns the key or category, whichever is set.
func (e KnowledgeEntry) Name() string {
	if e.Key != "" {
		return e.Key
	}
	return e.Category
}

// KnowledgeResult is the body of GET /api/knowledge. A search fills Query,
// ResultsCount, FormattedResponse and Results. An empty query returns the
// index instead: Topics, Scenarios and Message.
type KnowledgeResult struct {
	Query             string           `json:"query,omitempty"`
	ResultsCount      int              `json:"results_count"`
	FormattedResponse string           `json:"formatted_response,omitempty"`
	Results           []KnowledgeEntry `json:"results,omitempty"`

	Topics    []string `json:"topics,omitempty"`
	Scenarios []string `json:"scenarios,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// IsIndex reports whether r lists topics rather than search hits.
func (r *KnowledgeResult) IsIndex() bool {
	return r.Query == "" && (len(r.Topics) > 0 || len(r.Scenarios) > 0)
}

// Knowledge searches the regulatory knowledge base. An empty query
// returns the list of topics and scenarios.
func (c *Client) Knowledge(ctx context.Context, query string) (*KnowledgeResult, error) {
	if c.opts.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	target := c.url(c.opts.KnowledgePath)
	if q := strings.TrimSpace(query); q != "" {
		target += "?" + url.Values{"q": {q}}.Encode()
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: %w", err)
	}
	defer resp.Body.Close()

	var out KnowledgeResult
	if err := decodeInto(resp, &out); err != nil {
		return nil, fmt.Errorf("knowledge: %w", err)
	}
	return &out, nil
}
