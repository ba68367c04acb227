package config

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/whatslukewarm/feedgen/pkg/util"
)

// FilterProfile selects how aggressive the rejection filter is.
// The strict profile runs the full set of author heuristics and requires a
// profile-lookup client; the minimal profile only applies post-level checks.
type FilterProfile string

const (
	ProfileStrict  FilterProfile = "strict"
	ProfileMinimal FilterProfile = "minimal"
)

type Config struct {
	ValkeyAddress    string
	ValkeyTLSEnabled bool
	DatabasePath     string
	ServerPort       string
	Hostname         string
	PublisherDID     string
	JetstreamURL     string

	// Curation thresholds. Values are validated by presence only; the
	// defaults describe a feed of posts that are warm but not viral.
	MaxThreshold        int
	MinThreshold        int
	MinPostAge          time.Duration
	MaxPostAge          time.Duration
	MaxFollowersAllowed int
	MinAuthorPosts      int
	RejectLanguages     []string

	Profile       FilterProfile
	LookupEnabled bool
	ManageDNS     bool
}

func New() (Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	result := Config{
		ValkeyAddress:    util.GetEnvStr("VALKEY_ADDRESS", "127.0.0.1:6379"),
		ValkeyTLSEnabled: util.GetEnvBool("VALKEY_TLS_ENABLED", false),
		DatabasePath:     util.GetEnvStr("DATABASE_PATH", "feedgen.sqlite"),
		ServerPort:       util.GetEnvStr("SERVER_PORT", "8080"),
		Hostname:         util.GetEnvStr("FEEDGEN_HOSTNAME", "feed.example.com"),
		PublisherDID:     util.GetEnvStr("FEEDGEN_PUBLISHER_DID", ""),
		JetstreamURL:     util.GetEnvStr("JETSTREAM_URL", "wss://jetstream2.us-east.bsky.network/subscribe?wantedCollections=app.bsky.feed.post&wantedCollections=app.bsky.feed.like"),

		MaxThreshold:        util.GetEnvInt("MAX_THRESHOLD", 100),
		MinThreshold:        util.GetEnvInt("MIN_THRESHOLD", 10),
		MinPostAge:          time.Duration(util.GetEnvInt("MIN_AGE_OF_POST_IN_MS", 300000)) * time.Millisecond,
		MaxPostAge:          time.Duration(util.GetEnvInt("MAX_AGE_OF_POST_IN_MS", 86400000)) * time.Millisecond,
		MaxFollowersAllowed: util.GetEnvInt("MAX_FOLLOWERS_ALLOWED", 10000),
		MinAuthorPosts:      util.GetEnvInt("MIN_AUTHOR_POSTS", 4),
		RejectLanguages:     util.GetEnvStrSlice("REJECT_LANGUAGES", nil),

		Profile:       FilterProfile(util.GetEnvStr("FILTER_PROFILE", string(ProfileStrict))),
		LookupEnabled: util.GetEnvBool("LOOKUP_ENABLED", true),
		ManageDNS:     util.GetEnvBool("MANAGE_DNS", false),
	}

	// Marshal to JSON and print if debug is enabled
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn(util.WrapErr("failed to marshal config", err).Error())
	}
	slog.Debug("generated config", "config", string(data))

	return result, nil
}
