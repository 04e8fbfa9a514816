// Package main implements a mock retailer and webhook sink for local
// development. It serves sale listings as JSON-LD pages and as a paginated
// JSON endpoint, a page that looks like a bot challenge, and a webhook that
// records what the notifier posts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// item is one product in the mock catalog.
type item struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Price    float64 `json:"price"`
	WasPrice float64 `json:"was_price,omitempty"`
	Image    string  `json:"image"`
}

var catalog = []item{
	{Name: "Wool Overcoat", Path: "/p/wool-overcoat", Price: 120, WasPrice: 600, Image: "/img/overcoat.jpg"},
	{Name: "Cashmere Scarf", Path: "/p/cashmere-scarf", Price: 45, WasPrice: 150, Image: "/img/scarf.jpg"},
	{Name: "Leather Loafers", Path: "/p/leather-loafers", Price: 180, WasPrice: 240, Image: "/img/loafers.jpg"},
	{Name: "Silk Tie", Path: "/p/silk-tie", Price: 25, WasPrice: 100, Image: "/img/tie.jpg"},
	{Name: "Canvas Tote", Path: "/p/canvas-tote", Price: 30, Image: "/img/tote.jpg"},
	{Name: "Down Parka", Path: "/p/down-parka", Price: 299.99, WasPrice: 999.99, Image: "/img/parka.jpg"},
	{Name: "Linen Shirt", Path: "/p/linen-shirt", Price: 59, WasPrice: 69, Image: "/img/shirt.jpg"},
}

const challengePage = `<!DOCTYPE html>
<html><head><title>Just a moment...</title></head>
<body><div id="cf-challenge">Checking your browser before accessing the site.</div></body></html>`

var listingTmpl = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Sale - page {{.Page}}</title>
  {{if .LD}}<script type="application/ld+json">{{.LD}}</script>{{end}}
</head>
<body>
  <h1>Sale</h1>
  <ul>{{range .Items}}<li><a href="{{.Path}}">{{.Name}}</a></li>{{end}}</ul>
</body>
</html>`))

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	pageSize := flag.Int("page-size", 3, "products per listing page")
	failFirst := flag.Int("webhook-fail", 0, "fail this many webhook posts with 503 before accepting")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := newWebhookSink(logger, *failFirst)

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock retailer", "addr", addr, "products", len(catalog), "page_size", *pageSize)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, *pageSize, sink)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, pageSize int, sink *webhookSink) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sale", listingHandler(logger, pageSize))
	mux.HandleFunc("GET /api/products", productsHandler(logger, pageSize))
	mux.HandleFunc("GET /blocked", blockedHandler)
	mux.HandleFunc("POST /webhook", sink.receive)
	mux.HandleFunc("GET /webhook", sink.list)
	return mux
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

// pageOf returns the 1-based page of the catalog, or nil past the end.
func pageOf(r *http.Request, pageSize int) (int, []item) {
	page := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	start := (page - 1) * pageSize
	if start >= len(catalog) {
		return page, nil
	}
	return page, catalog[start:min(start+pageSize, len(catalog))]
}

func listingHandler(logger *slog.Logger, pageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, items := pageOf(r, pageSize)

		var ld template.JS
		if len(items) > 0 {
			data, err := json.Marshal(itemList(items))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			ld = template.JS(data) //nolint:gosec // catalog is static
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := listingTmpl.Execute(w, map[string]any{"Page": page, "Items": items, "LD": ld}); err != nil {
			logger.Error("rendering listing", "error", err)
			return
		}
		logger.Info("listing", "page", page, "returned", len(items))
	}
}

// itemList renders items as a schema.org ItemList of Product nodes.
func itemList(items []item) map[string]any {
	elements := make([]map[string]any, 0, len(items))
	for i, it := range items {
		offer := map[string]any{
			"@type":         "Offer",
			"price":         strconv.FormatFloat(it.Price, 'f', 2, 64),
			"priceCurrency": "GBP",
		}
		if it.WasPrice > 0 {
			offer["priceSpecification"] = []map[string]any{{
				"@type":     "UnitPriceSpecification",
				"priceType": "https://schema.org/StrikethroughPrice",
				"price":     it.WasPrice,
			}}
		}
		elements = append(elements, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"item": map[string]any{
				"@type":  "Product",
				"name":   it.Name,
				"url":    it.Path,
				"image":  it.Image,
				"offers": offer,
			},
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "ItemList",
		"itemListElement": elements,
	}
}

func productsHandler(logger *slog.Logger, pageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, items := pageOf(r, pageSize)
		if items == nil {
			items = []item{}
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(map[string]any{
			"data":  map[string]any{"products": items},
			"page":  page,
			"total": len(catalog),
		})
		logger.Info("products", "page", page, "returned", len(items))
	}
}

func blockedHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = io.WriteString(w, challengePage)
}

// webhookSink records webhook payloads. The first failFirst posts are
// rejected with 503 and a Retry-After header to exercise retries.
type webhookSink struct {
	mu        sync.Mutex
	logger    *slog.Logger
	failFirst int
	attempts  int
	received  []json.RawMessage
}

func newWebhookSink(logger *slog.Logger, failFirst int) *webhookSink {
	return &webhookSink{logger: logger, failFirst: failFirst}
}

func (s *webhookSink) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || !json.Valid(body) {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if s.attempts <= s.failFirst {
		s.logger.Warn("rejecting webhook", "attempt", s.attempts)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	s.received = append(s.received, body)
	s.logger.Info("webhook received", "bytes", len(body), "total", len(s.received))
	w.WriteHeader(http.StatusNoContent)
}

func (s *webhookSink) list(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	received := s.received
	if received == nil {
		received = []json.RawMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(map[string]any{"attempts": s.attempts, "received": received})
}
