package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"passaro/internal/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// AuditIndexer persists check-in decisions and reconciliation protocol
// violations to Elasticsearch. Indexing is best-effort; it never sits on
// the scan or reconciliation paths synchronously.
type AuditIndexer struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// AuditDocument is one indexed decision.
type AuditDocument struct {
	Kind        string    `json:"kind"` // "redemption" | "protocol_violation"
	TicketID    string    `json:"ticket_id,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
	BatchID     string    `json:"batch_id,omitempty"`
	IntentID    string    `json:"intent_id,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OperatorID  string    `json:"operator_id,omitempty"`
	FromStatus  string    `json:"from_status,omitempty"`
	ToStatus    string    `json:"to_status,omitempty"`
	Source      string    `json:"source,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// NewAuditIndexer создает клиент Elasticsearch и гарантирует наличие индекса
func NewAuditIndexer(cfg config.ElasticsearchConfig) (*AuditIndexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	indexer := &AuditIndexer{
		client: es,
		config: cfg,
	}

	if err := indexer.ensureIndex(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return indexer, nil
}

func (a *AuditIndexer) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{a.config.Index},
	}

	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", a.config.Index)
		return nil
	}

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"kind":        map[string]interface{}{"type": "keyword"},
				"ticket_id":   map[string]interface{}{"type": "keyword"},
				"event_id":    map[string]interface{}{"type": "keyword"},
				"batch_id":    map[string]interface{}{"type": "keyword"},
				"intent_id":   map[string]interface{}{"type": "keyword"},
				"outcome":     map[string]interface{}{"type": "keyword"},
				"reason":      map[string]interface{}{"type": "keyword"},
				"operator_id": map[string]interface{}{"type": "keyword"},
				"from_status": map[string]interface{}{"type": "keyword"},
				"to_status":   map[string]interface{}{"type": "keyword"},
				"source":      map[string]interface{}{"type": "keyword"},
				"recorded_at": map[string]interface{}{
					"type":   "date",
					"format": "strict_date_optional_time||epoch_millis",
				},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: a.config.Index,
		Body:  bytes.NewReader(body),
	}

	createRes, err := createReq.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("index creation returned error: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", a.config.Index)
	return nil
}

// Index writes one audit document.
func (a *AuditIndexer) Index(ctx context.Context, doc AuditDocument) error {
	if doc.RecordedAt.IsZero() {
		doc.RecordedAt = time.Now()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal audit document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      a.config.Index,
		DocumentID: uuid.New().String(),
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("failed to index audit document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing returned error: %s", res.String())
	}

	return nil
}
