package app

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/whatslukewarm/feedgen/pkg/bsky"
	"github.com/whatslukewarm/feedgen/pkg/config"
	"github.com/whatslukewarm/feedgen/pkg/util"
)

// Authors whose profile description matches this pattern are dropped for the
// lifetime of the process. The list covers explicit/NSFW markers.
var forbiddenTerms = regexp.MustCompile(`(?i)(nsfw|🔞|🦊|fursuit|ffxiv|boobs|onlyfans|pervert|himbo|dni|transformation|paws|lewd|18\+|\+18|shirtless|only\s*fans|of\s*model|thirst|fur|daddy|nudist|subby|domme|masochist|horny|anthro|porn|penis|cock|tits|nude|suggestive|no\s*minors)`)

// Hashtag patterns that disqualify a single post without judging its author.
var furHashtag = regexp.MustCompile(`(?i)#\S*fur`)
var blockedHashtags = regexp.MustCompile(`(?i)#(bondage|bdsm|nsfw|gay|yiff|dirtypaws|anthro|porn)`)

// Get a set of blocked DIDs that can be used to filter out bot posts.
func getBlockedDIDs() mapset.Set[string] {
	set := mapset.NewSet[string]()

	data, err := assets.ReadFile("assets/dids.txt")
	if err != nil {
		slog.Error(util.WrapErr("failed to read dids.txt", err).Error())
		return set
	}

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		set.Add(line)
	}

	return set
}

var blockedDIDs = getBlockedDIDs()

// Registry is the process-wide set of authors permanently excluded from the
// feed. It grows monotonically; entries are only reset by a restart without
// a snapshot to restore.
type Registry struct {
	set mapset.Set[string]
}

func NewRegistry() *Registry {
	return &Registry{set: mapset.NewSet[string]()}
}

func (r *Registry) Ban(did string) {
	r.set.Add(did)
}

func (r *Registry) Banned(did string) bool {
	return r.set.Contains(did)
}

// Snapshot returns the registry contents for persistence.
func (r *Registry) Snapshot() []string {
	return r.set.ToSlice()
}

func (r *Registry) Restore(dids []string) {
	for _, did := range dids {
		r.set.Add(did)
	}
}

// Filter evaluates candidate posts against moderation and quality
// heuristics. Author-level rejections are remembered in the registry;
// post-level rejections are re-evaluated on every post.
type Filter struct {
	registry        *Registry
	profile         config.FilterProfile
	maxFollowers    int
	minAuthorPosts  int
	rejectLanguages mapset.Set[string]
}

func NewFilter(cfg config.Config, registry *Registry) *Filter {
	languages := mapset.NewSet[string]()
	for _, lang := range cfg.RejectLanguages {
		languages.Add(strings.ToLower(lang))
	}

	return &Filter{
		registry:        registry,
		profile:         cfg.Profile,
		maxFollowers:    cfg.MaxFollowersAllowed,
		minAuthorPosts:  cfg.MinAuthorPosts,
		rejectLanguages: languages,
	}
}

// Evaluate decides whether a candidate post enters the working table.
// Returns an empty string to keep the post, or the reason it was rejected.
// Checks run in a fixed order and the first match wins. The author profile
// may be nil, in which case author-based checks are skipped entirely.
func (f *Filter) Evaluate(post CreateOp, author *bsky.Profile) string {
	if f.registry.Banned(post.Author) {
		return "author in registry"
	}

	if blockedDIDs.Contains(post.Author) {
		return "blocked did"
	}

	if f.profile == config.ProfileMinimal {
		if post.Record.Reply != nil {
			return "reply"
		}
		return ""
	}

	textLower := strings.ToLower(post.Record.Text)

	if author != nil {
		if author.FollowersCount > f.maxFollowers {
			f.registry.Ban(post.Author)
			return "too many followers"
		}
		if author.Viewer.Muted || author.Viewer.BlockedBy {
			f.registry.Ban(post.Author)
			return "muted or blocked"
		}
		if forbiddenTerms.MatchString(author.Description) {
			f.registry.Ban(post.Author)
			return "forbidden terms in profile"
		}
	}

	if f.rejectedLanguage(textLower) {
		f.registry.Ban(post.Author)
		return "rejected language"
	}

	if author != nil && author.PostsCount < f.minAuthorPosts {
		return "too few posts"
	}

	if post.Record.Reply != nil {
		return "reply"
	}

	if strings.Contains(textLower, "hello world") || strings.Contains(textLower, "hello, world") {
		return "test post"
	}

	if furHashtag.MatchString(textLower) || blockedHashtags.MatchString(textLower) {
		return "blocked hashtag"
	}

	return ""
}

// rejectedLanguage detects the natural language of the post text and checks
// it against the configured reject list (ISO 639-3 codes).
func (f *Filter) rejectedLanguage(text string) bool {
	if f.rejectLanguages.Cardinality() == 0 || text == "" {
		return false
	}
	info := whatlanggo.Detect(text)
	return f.rejectLanguages.Contains(whatlanggo.LangToString(info.Lang))
}

// PassesLabelCheck re-validates a post at promotion time against the
// moderation labels the AppView has applied. Any label aborts promotion.
func PassesLabelCheck(post bsky.PostView) bool {
	return len(post.Labels) == 0
}
