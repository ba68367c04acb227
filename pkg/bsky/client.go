package bsky

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/whatslukewarm/feedgen/pkg/util"
)

const (
	PublicAPIURL = "https://public.api.bsky.app"
	SessionURL   = "https://bsky.social"
)

// Profile is the subset of an actor profile the rejection filter reads.
// Viewer state is only populated when the client holds a session.
type Profile struct {
	DID            string `json:"did"`
	Description    string `json:"description"`
	FollowersCount int    `json:"followersCount"`
	PostsCount     int    `json:"postsCount"`
	Viewer         Viewer `json:"viewer"`
}

type Viewer struct {
	Muted     bool `json:"muted"`
	BlockedBy bool `json:"blockedBy"`
}

// PostView is a hydrated post as returned by getPosts, including any
// moderation labels applied to it.
type PostView struct {
	URI    string  `json:"uri"`
	Author Author  `json:"author"`
	Labels []Label `json:"labels"`
}

type Author struct {
	DID string `json:"did"`
}

type Label struct {
	Val string `json:"val"`
}

// Client talks to the Bluesky AppView. With credentials it opens an app
// password session so viewer mute/block flags are present on profiles;
// without them it falls back to the unauthenticated public endpoint.
type Client struct {
	host      string
	accessJWT string
	http      *http.Client
}

func NewClient(handle, password string) (*Client, error) {
	client := &Client{
		host: PublicAPIURL,
		http: &http.Client{Timeout: 30 * time.Second},
	}

	if handle == "" || password == "" {
		return client, nil
	}

	body, err := json.Marshal(map[string]string{
		"identifier": handle,
		"password":   password,
	})
	if err != nil {
		return nil, util.WrapErr("failed to marshal session request", err)
	}

	resp, err := client.http.Post(SessionURL+"/xrpc/com.atproto.server.createSession", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, util.WrapErr("failed to create session", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("failed to create session: " + resp.Status)
	}

	var session struct {
		AccessJWT string `json:"accessJwt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, util.WrapErr("failed to decode session response", err)
	}

	client.host = SessionURL
	client.accessJWT = session.AccessJWT
	return client, nil
}

// GetProfile fetches an actor profile by DID.
func (c *Client) GetProfile(did string) (*Profile, error) {
	var profile Profile
	query := url.Values{"actor": {did}}
	if err := c.get("app.bsky.actor.getProfile", query, &profile); err != nil {
		return nil, util.WrapErr(fmt.Sprintf("failed to get profile for %s", did), err)
	}
	return &profile, nil
}

// GetPosts fetches hydrated post views by AT URI. URIs the AppView cannot
// resolve are simply absent from the result.
func (c *Client) GetPosts(uris []string) ([]PostView, error) {
	query := url.Values{"uris": uris}
	var result struct {
		Posts []PostView `json:"posts"`
	}
	if err := c.get("app.bsky.feed.getPosts", query, &result); err != nil {
		return nil, util.WrapErr("failed to get posts", err)
	}
	return result.Posts, nil
}

func (c *Client) get(method string, query url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/xrpc/%s?%s", c.host, method, query.Encode())
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return util.WrapErr("failed to create request", err)
	}
	if c.accessJWT != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJWT)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return util.WrapErr("failed to send request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("unexpected status: " + resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return util.WrapErr("failed to read response body", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return util.WrapErr("failed to unmarshal response body", err)
	}

	return nil
}
