// Package elastic adapts Elasticsearch into C1's Match operation, grounded
// on the teacher's getKeywordIndexEngine driver-dispatch idiom
// (handler/system.go reads RETRIEVE_DRIVER to pick between postgres and
// elasticsearch_v7/v8 for keyword retrieval): deployments whose tag corpus
// has grown past what the in-process gojieba tokenizer can comfortably
// score on every query can route Match to an ES index instead.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// tagDoc is the shape indexed per tag: canonical name, category and the
// flattened synonym list, enabling a single multi_match across all three.
type tagDoc struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Synonyms []string `json:"synonyms"`
	Weight   float64  `json:"weight"`
}

// VocabularyIndex implements the Match half of interfaces.TagVocabulary
// against an Elasticsearch index; TagOverlap and TagsByCategory are pure
// in-memory set/slice operations that gain nothing from a network round
// trip, so they delegate to an embedded snapshot source.
type VocabularyIndex struct {
	client *elasticsearch.Client
	index  string
	meta   interfaces.TagVocabulary
}

var _ interfaces.TagVocabulary = (*VocabularyIndex)(nil)

// New connects to addrs (e.g. ["http://localhost:9200"]) and targets index.
// meta supplies TagOverlap/TagsByCategory, typically the in-process
// *vocabulary.Vocabulary loaded from the same source rows that were
// indexed into ES.
func New(addrs []string, index string, meta interfaces.TagVocabulary) (*VocabularyIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addrs})
	if err != nil {
		return nil, apperrors.NewConfigError("elastic: client init failed", err)
	}
	return &VocabularyIndex{client: client, index: index, meta: meta}, nil
}

// Ping satisfies gateway.Pinger via the cluster's own health check.
func (v *VocabularyIndex) Ping(ctx context.Context) error {
	res, err := v.client.Cluster.Health(v.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		return apperrors.NewBackendUnavailableError("elastic: cluster health request failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewBackendUnavailableError(fmt.Sprintf("elastic: cluster health returned %s", res.Status()), nil)
	}
	return nil
}

// IndexTags (re)indexes rows as tagDocs, one document per tag, keyed by
// lowercased canonical name so repeated calls overwrite rather than
// duplicate.
func (v *VocabularyIndex) IndexTags(ctx context.Context, tags []types.Tag) error {
	for _, t := range tags {
		syns := make([]string, 0, len(t.Synonyms))
		for s := range t.Synonyms {
			syns = append(syns, s)
		}
		doc := tagDoc{Name: t.Name, Category: string(t.Category), Synonyms: syns, Weight: t.Weight}
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("elastic: marshal tag %q: %w", t.Name, err)
		}
		req := esapi.IndexRequest{
			Index:      v.index,
			DocumentID: strings.ToLower(t.Name),
			Body:       bytes.NewReader(body),
			Refresh:    "false",
		}
		res, err := req.Do(ctx, v.client)
		if err != nil {
			return apperrors.NewBackendUnavailableError("elastic: index tag failed", err)
		}
		res.Body.Close()
		if res.IsError() {
			return apperrors.NewBackendUnavailableError(fmt.Sprintf("elastic: index tag %q returned %s", t.Name, res.Status()), nil)
		}
	}
	return nil
}

type searchHit struct {
	Score  float64 `json:"_score"`
	Source tagDoc  `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// Match runs a multi_match query across name/synonyms, scoring ES's BM25
// relevance into [0,1] by dividing by the top hit's score so the output
// stays comparable to the in-process Match's exact/synonym weights (§4.1).
func (v *VocabularyIndex) Match(queryText string) []interfaces.TagMatch {
	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  queryText,
				"fields": []string{"name^2", "synonyms"},
			},
		},
	})

	res, err := v.client.Search(
		v.client.Search.WithContext(context.Background()),
		v.client.Search.WithIndex(v.index),
		v.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil || res.IsError() {
		return nil
	}
	defer res.Body.Close()

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil
	}
	if len(parsed.Hits.Hits) == 0 {
		return nil
	}

	top := parsed.Hits.Hits[0].Score
	out := make([]interfaces.TagMatch, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		score := 1.0
		if top > 0 {
			score = h.Score / top
		}
		out = append(out, interfaces.TagMatch{
			Tag: types.Tag{
				Name:     h.Source.Name,
				Category: types.ParseCategory(h.Source.Category),
				Weight:   h.Source.Weight,
			},
			Score: score,
		})
	}
	return out
}

func (v *VocabularyIndex) TagOverlap(tagsA, tagsB []string) float64 {
	return v.meta.TagOverlap(tagsA, tagsB)
}

func (v *VocabularyIndex) TagsByCategory(c types.Category) []types.Tag {
	return v.meta.TagsByCategory(c)
}
