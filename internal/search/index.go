// Package search keeps an Elasticsearch index of simulation requests.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/requests"
)

// Config holds the cluster connection settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper
}

// Index implements requests.Searcher.
type Index struct {
	es     *elasticsearch.Client
	index  string
	logger *zap.Logger
}

var _ requests.Searcher = (*Index)(nil)

func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Index{es: es, index: cfg.Index, logger: logger}, nil
}

// document is what gets indexed per request.
type document struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Vendor      string    `json:"vendor"`
	ProjectName string    `json:"project_name"`
	ProjectCode string    `json:"project_code"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

const mapping = `{
  "mappings": {
    "properties": {
      "title":        {"type": "text"},
      "description":  {"type": "text"},
      "vendor":       {"type": "text"},
      "project_name": {"type": "text"},
      "project_code": {"type": "keyword"},
      "status":       {"type": "keyword"},
      "created_at":   {"type": "date"}
    }
  }
}`

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.index}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.es.Indices.Create(i.index,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(strings.NewReader(mapping)))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	i.logger.Info("search index created", zap.String("index", i.index))
	return nil
}

func (i *Index) Index(ctx context.Context, r *requests.Request) error {
	body, err := json.Marshal(document{
		Title:       r.Title,
		Description: r.Description,
		Vendor:      r.Vendor,
		ProjectName: r.ProjectName,
		ProjectCode: r.ProjectCode,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request document: %w", err)
	}

	res, err := i.es.Index(i.index, bytes.NewReader(body),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(r.ID))
	if err != nil {
		return fmt.Errorf("failed to index request %s: %w", r.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index request", res)
	}
	return nil
}

// Remove deletes the document. A missing document is not an error.
func (i *Index) Remove(ctx context.Context, id string) error {
	res, err := i.es.Delete(i.index, id, i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to remove request %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("remove request", res)
	}
	return nil
}

// Search returns matching request ids, best match first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	body, err := json.Marshal(map[string]any{
		"_source": false,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^3", "description", "vendor", "project_name", "project_code"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(bytes.NewReader(body)),
		i.es.Search.WithSize(limit))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func responseError(op string, res *esapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("%s: elasticsearch returned %s: %s", op, res.Status(), strings.TrimSpace(string(msg)))
}
