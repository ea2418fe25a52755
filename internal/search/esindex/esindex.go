// Package esindex is the Elasticsearch backend of the ticket search index.
package esindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/fixflow-io/fixflow/internal/repair"
	"github.com/fixflow-io/fixflow/internal/search"
)

// Config for the Elasticsearch index.
// Addresses: list of http(s) endpoints, e.g. ["http://localhost:9200"].
// Index: index name, default "repair_tickets". Basic auth optional.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

type Index struct {
	cli   *elasticsearch.Client
	index string
}

func New(cfg Config) (*Index, error) {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Index == "" {
		cfg.Index = "repair_tickets"
	}
	esCfg := elasticsearch.Config{Addresses: cfg.Addresses}
	if cfg.Username != "" || cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	cli, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}
	return &Index{cli: cli, index: cfg.Index}, nil
}

type ticketDoc struct {
	TicketID string `json:"ticket_id"`
	Customer string `json:"customer"`
	Device   string `json:"device"`
	Problem  string `json:"problem"`
	Status   int    `json:"status"`
	Location string `json:"location"`
}

// ensureIndex creates the index with a minimal mapping if it doesn't exist.
func (x *Index) ensureIndex(ctx context.Context) error {
	res, err := x.cli.Indices.Exists([]string{x.index})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	body := `{
		"settings": {"refresh_interval": "5s"},
		"mappings": {"properties": {
			"ticket_id": {"type": "keyword"},
			"customer":  {"type": "text"},
			"device":    {"type": "text"},
			"problem":   {"type": "text"},
			"status":    {"type": "integer"},
			"location":  {"type": "keyword"}
		}}
	}`
	cr := esapi.IndicesCreateRequest{Index: x.index, Body: strings.NewReader(body)}
	cres, err := cr.Do(ctx, x.cli)
	if err != nil {
		return err
	}
	defer cres.Body.Close()
	if cres.StatusCode >= 300 {
		return fmt.Errorf("create index failed: %s", cres.String())
	}
	return nil
}

func (x *Index) IndexTicket(ctx context.Context, t *repair.Ticket) error {
	if err := x.ensureIndex(ctx); err != nil {
		return err
	}
	doc := ticketDoc{
		TicketID: t.ID,
		Customer: t.Customer.Name,
		Device:   strings.TrimSpace(t.Device.Brand + " " + t.Device.Model + " " + t.Device.Serial),
		Problem:  t.Problem,
		Status:   int(t.CurrentStatus()),
		Location: t.Location,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ir := esapi.IndexRequest{Index: x.index, DocumentID: t.ID, Body: strings.NewReader(string(payload)), Refresh: "true"}
	res, err := ir.Do(ctx, x.cli)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("index failed: %s", res.String())
	}
	return nil
}

func (x *Index) Search(ctx context.Context, q string, limit int) ([]*search.Hit, int, error) {
	if err := x.ensureIndex(ctx); err != nil {
		return nil, 0, err
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return []*search.Hit{}, 0, nil
	}
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`{
	"size": %d,
	"query": {"multi_match": {"query": %q, "fields": ["ticket_id^3","customer^2","device^1.5","problem"], "type": "best_fields"}}
}`, limit, q)
	sr := esapi.SearchRequest{Index: []string{x.index}, Body: strings.NewReader(query)}
	res, err := sr.Do(ctx, x.cli)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("search failed: %s", res.String())
	}
	var resp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64   `json:"_score"`
				Source ticketDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, 0, err
	}
	hits := make([]*search.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		hits = append(hits, &search.Hit{
			TicketID: h.Source.TicketID,
			Customer: h.Source.Customer,
			Device:   h.Source.Device,
			Problem:  h.Source.Problem,
			Score:    h.Score,
		})
	}
	return hits, resp.Hits.Total.Value, nil
}

// Ping performs a lightweight health check against the cluster. Caller
// should wrap with its own timeout; a default is enforced here regardless.
func (x *Index) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
	}
	res, err := x.cli.Info(x.cli.Info.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("es info status %d", res.StatusCode)
	}
	return nil
}
