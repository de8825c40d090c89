package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"production-ops-backend/config"
	"production-ops-backend/internal/parse"
	"production-ops-backend/internal/store"
)

// Importer pulls pending orders from the ERP feed into the candidate table.
type Importer struct {
	cfg    *config.ERPConfig
	store  store.Store
	client *http.Client
}

// NewImporter creates and initializes a new ERP importer.
func NewImporter(cfg *config.ERPConfig, store store.Store) *Importer {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Importer will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Importer{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// Run imports once immediately and then on every interval until ctx is done.
func (im *Importer) Run(ctx context.Context) {
	if !im.cfg.Enabled {
		log.Println("ERP importer is disabled. Not starting.")
		return
	}
	log.Println("Starting ERP importer...")

	im.ImportOnce(ctx)

	timer := time.NewTimer(im.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("ERP importer shutting down.")
			return
		case <-timer.C:
			im.ImportOnce(ctx)
			timer.Reset(im.cfg.Interval)
		}
	}
}

// ImportOnce fetches every page of the feed and upserts the usable items.
func (im *Importer) ImportOnce(ctx context.Context) {
	log.Println("Executing ERP import cycle...")
	now := time.Now().UTC()

	var allItems []store.ErpItem
	total := 1
	pageSize := im.cfg.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := im.fetchPage(ctx, page)
		if err != nil {
			log.Printf("Error fetching ERP page %d: %v", page, err)
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
		log.Printf("Fetched ERP page %d/%d, total items so far: %d", page, (total+pageSize-1)/pageSize, len(allItems))
	}

	if fetchErr != nil && len(allItems) == 0 {
		log.Println("ERP import aborted due to fetch error with no items retrieved.")
		return
	}

	items := normalize(allItems)
	if len(items) == 0 {
		log.Println("ERP import finished: no items to process.")
		return
	}

	if err := im.store.UpsertCandidates(ctx, now, items); err != nil {
		log.Printf("Error upserting candidate orders: %v", err)
		return
	}

	log.Printf("ERP import finished: %d candidate orders upserted.", len(items))
}

// normalize parses durations and drops items the sequencer could never place.
func normalize(items []store.ErpItem) []store.ErpItem {
	out := make([]store.ErpItem, 0, len(items))
	for _, item := range items {
		hours, err := parse.Hours(item.Duration)
		if err != nil {
			log.Printf("Warning: skipping ERP order %s: %v", item.SapID, err)
			continue
		}
		if hours <= 0 {
			log.Printf("Warning: skipping ERP order %s: non-positive duration %q", item.SapID, item.Duration)
			continue
		}
		item.DurationHours = hours
		out = append(out, item)
	}
	return out
}

// fetchPage fetches a single page of orders from the ERP feed.
func (im *Importer) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range im.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = im.cfg.Request.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, im.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range im.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("ERP returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
