package api

import (
	"github.com/url2feed/url2feed/app/discovery"
	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/ingest"
	"github.com/url2feed/url2feed/app/resolver"
	"github.com/url2feed/url2feed/app/safety"
)

type Handler struct {
	policy     safety.Policy
	resolver   *resolver.Resolver
	feeds      *feed.Service
	discoverer *discovery.Discoverer
	runner     *ingest.Runner
	sources    []ingest.Source
}

type resolveRequest struct {
	URL         string `json:"url" binding:"required"`
	BypassCache bool   `json:"bypass_cache"`
}

type urlRequest struct {
	URL string `json:"url" binding:"required"`
}

type urlListRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

type parseResult struct {
	URL   string             `json:"url"`
	Feed  *feed.ResolvedFeed `json:"feed,omitempty"`
	Error string             `json:"error,omitempty"`
}

type validationResult struct {
	URL      string `json:"url"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
