package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/diagnostic/benchmark"
	"copro-diagnostic/internal/models"
)

// DefaultIndex holds one document per recorded diagnostic.
const DefaultIndex = "market_stats"

// maxHits bounds a single benchmark search.
const maxHits = 500

// ElasticsearchSource searches the market statistics index.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
	now    func() time.Time
}

func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticsearchSource{client: client, index: index, now: time.Now}
}

type statDocument struct {
	PostalCode    string    `json:"postal_code"`
	CurrentRating string    `json:"current_rating"`
	TargetRating  string    `json:"target_rating"`
	CostPerSqm    float64   `json:"cost_per_sqm"`
	CreatedAt     time.Time `json:"created_at"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source statDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildStatsQuery(postalCode string, current, target models.Rating, since time.Time) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"postal_code": postalCode}},
					map[string]interface{}{"term": map[string]interface{}{"current_rating": string(current)}},
					map[string]interface{}{"term": map[string]interface{}{"target_rating": string(target)}},
					map[string]interface{}{"range": map[string]interface{}{
						"cost_per_sqm": map[string]interface{}{"gt": 0},
					}},
					map[string]interface{}{"range": map[string]interface{}{
						"created_at": map[string]interface{}{"gte": since.Format(time.RFC3339)},
					}},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}
}

func (s *ElasticsearchSource) FetchRecords(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
	since := s.now().UTC().AddDate(0, -benchmark.WindowMonths, 0)

	body, err := json.Marshal(buildStatsQuery(postalCode, current, target, since))
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(s.index, err)
	}

	size := maxHits
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(s.index, fmt.Errorf("status %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(s.index, err)
	}

	records := make([]models.MarketRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		records = append(records, models.MarketRecord{
			PostalCode:    doc.PostalCode,
			CurrentRating: models.Rating(doc.CurrentRating),
			TargetRating:  models.Rating(doc.TargetRating),
			CostPerSqm:    doc.CostPerSqm,
			CreatedAt:     doc.CreatedAt,
		})
	}
	return records, nil
}
