package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/url2feed/url2feed/app/discovery"
	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/ingest"
	"github.com/url2feed/url2feed/app/resolver"
	"github.com/url2feed/url2feed/app/safety"
)

func NewHandler(policy safety.Policy, res *resolver.Resolver, feeds *feed.Service,
	discoverer *discovery.Discoverer, runner *ingest.Runner, sources []ingest.Source) *Handler {
	return &Handler{
		policy:     policy,
		resolver:   res,
		feeds:      feeds,
		discoverer: discoverer,
		runner:     runner,
		sources:    sources,
	}
}

func (h *Handler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must include a url field"})
		return
	}

	resolution, err := h.resolver.Resolve(c.Request.Context(), req.URL, resolver.Options{BypassCache: req.BypassCache})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolution)
}

func (h *Handler) ResolveRSS(c *gin.Context) {
	pageURL := c.Query("url")
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url query parameter"})
		return
	}

	resolution, err := h.resolver.Resolve(c.Request.Context(), pageURL, resolver.Options{})
	if err != nil {
		h.renderError(c, err)
		return
	}

	rss := resolution.RSS
	if rss == "" {
		rss = feed.NewGenerator().Run(resolution.Feed, pageURL)
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Resolution-Mode", resolution.Mode)
	c.Header("X-Feed-Items", strconv.Itoa(len(resolution.Feed.Items)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) Discover(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must include a url field"})
		return
	}

	feedURL, found, err := h.discoverer.Discover(c.Request.Context(), req.URL)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":      req.URL,
		"found":    found,
		"feed_url": feedURL,
	})
}

// Parse resolves a batch of feed URLs concurrently. Results are
// index-aligned with the request; a failing URL never hides the others.
func (h *Handler) Parse(c *gin.Context) {
	var req urlListRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must include a non-empty urls list"})
		return
	}

	results := make([]parseResult, len(req.URLs))

	var wg sync.WaitGroup
	for i, feedURL := range req.URLs {
		wg.Add(1)
		go func(i int, feedURL string) {
			defer wg.Done()

			results[i] = parseResult{URL: feedURL}
			resolved, err := h.feeds.FetchAndParse(c.Request.Context(), feedURL, feed.FetchOptions{})
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Feed = resolved
		}(i, feedURL)
	}
	wg.Wait()

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}

func (h *Handler) Validate(c *gin.Context) {
	var req urlListRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must include a non-empty urls list"})
		return
	}

	results := make([]validationResult, 0, len(req.URLs))
	acceptedCount := 0

	for _, raw := range req.URLs {
		verdict := h.policy.Validate(raw)
		result := validationResult{URL: raw, Accepted: verdict.Accepted}
		if !verdict.Accepted {
			result.Reason = string(verdict.Reason)
		} else {
			acceptedCount++
		}
		results = append(results, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"results":  results,
		"accepted": acceptedCount,
		"rejected": len(results) - acceptedCount,
	})
}

func (h *Handler) Ingest(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Bulk ingestion is not configured (set SOURCES_FILE)"})
		return
	}

	enabled := ingest.EnabledSources(h.sources)
	if len(enabled) == 0 {
		c.JSON(http.StatusOK, gin.H{"outcomes": []ingest.Outcome{}, "total": 0})
		return
	}

	outcomes := h.runner.IngestAll(c.Request.Context(), enabled)

	c.JSON(http.StatusOK, gin.H{
		"outcomes": outcomes,
		"total":    len(outcomes),
	})
}

func (h *Handler) FlushCache(c *gin.Context) {
	h.feeds.Cache().Flush()
	slog.Info("Feed cache flushed")
	c.JSON(http.StatusOK, gin.H{"status": "flushed"})
}

func (h *Handler) InvalidateCache(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must include a url field"})
		return
	}

	h.feeds.Cache().Invalidate(req.URL)
	c.JSON(http.StatusOK, gin.H{"status": "invalidated", "url": req.URL})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"sources":   len(h.sources),
	}

	stats := h.feeds.Cache().Stats()
	health["cached_feeds"] = stats.Keys

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := h.feeds.Cache().Stats()

	c.JSON(http.StatusOK, gin.H{
		"cache": gin.H{
			"keys":     stats.Keys,
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": stats.HitRate,
		},
		"sources": gin.H{
			"total":   len(h.sources),
			"enabled": len(ingest.EnabledSources(h.sources)),
		},
	})
}

// renderError maps pipeline errors onto HTTP statuses: validation failures
// are the client's fault, upstream fetch failures are a bad gateway, and
// parse failures mean the upstream content was unusable.
func (h *Handler) renderError(c *gin.Context, err error) {
	var vErr *safety.Error
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  vErr.Error(),
			"reason": string(vErr.Reason),
		})
		return
	}

	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
		return
	}

	var parseErr *feed.ParseError
	if errors.As(err, &parseErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": parseErr.Error()})
		return
	}

	slog.Error("Unhandled resolution error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
