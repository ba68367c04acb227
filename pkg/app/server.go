package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/whatslukewarm/feedgen/pkg/util"
)

const FeedShortname = "whats-lukewarm"

// Server runs the feed generator HTTP endpoints, reading the feed index
// built by the intake process.
func Server() error {
	slog.Info("starting server")

	app, err := NewApp()
	if err != nil {
		return util.WrapErr("failed to create app", err)
	}
	defer app.Close()

	if app.Config.ManageDNS {
		if err := updateServiceDNS(app.Config); err != nil {
			slog.Error(util.WrapErr("failed to update service dns", err).Error())
		}
	}

	server := http.NewServeMux()

	// Serve the DID document for this domain.
	server.HandleFunc("/.well-known/did.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public; max-age=28800") // 8 hours

		didDoc := APIDIDDocResponse{
			Context: []string{"https://www.w3.org/ns/did/v1"},
			ID:      "did:web:" + app.Config.Hostname,
			Service: []APIService{{
				ID:              "#bsky_fg",
				Type:            "BskyFeedGenerator",
				ServiceEndpoint: "https://" + app.Config.Hostname,
			}},
		}

		if err := json.NewEncoder(w).Encode(didDoc); err != nil {
			slog.Error("failed to encode response", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	})

	// Describe the feeds this generator publishes.
	server.HandleFunc("/xrpc/app.bsky.feed.describeFeedGenerator", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		resp := APIDescribeFeedGeneratorResponse{
			DID: "did:web:" + app.Config.Hostname,
			Feeds: []APIFeed{{
				URI: fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", app.Config.PublisherDID, FeedShortname),
			}},
		}

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to encode response", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	})

	// Serve the feed skeleton: promoted posts, newest first.
	server.HandleFunc("/xrpc/app.bsky.feed.getFeedSkeleton", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public; max-age=10")

		// Handle "limit" query parameter
		limitStr := r.URL.Query().Get("limit")
		if limitStr == "" {
			limitStr = "50"
		}
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			slog.Error("failed to parse limit", "error", err)
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if limit < 1 || limit > 100 {
			slog.Error("invalid limit", "limit", limit)
			http.Error(w, "Limit must be between 1 and 100", http.StatusBadRequest)
			return
		}

		cursor := r.URL.Query().Get("cursor")

		posts, respCursor, err := app.Store.ReadFeed(limit, cursor)
		if err != nil {
			slog.Error("failed to read feed", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Convert to response format
		feed := make([]APIPost, len(posts))
		for i, post := range posts {
			feed[i] = APIPost{
				Post: post.URI,
			}
		}
		resp := APIFeedSkeletonResponse{
			Feed:   feed,
			Cursor: respCursor,
		}

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to encode response", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	})

	// Start the server
	slog.Info("starting server", "port", app.Config.ServerPort)
	return http.ListenAndServe(fmt.Sprintf(":%s", app.Config.ServerPort), server)
}
