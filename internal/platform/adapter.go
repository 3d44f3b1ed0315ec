// Package platform holds the publish adapters: one per social network,
// all behind a single capability interface. Adapters are the only code
// that talks to the external platform APIs.
package platform

import (
	"context"
	"sort"
	"strings"
)

// Platform identifiers. These are the values stored in posts.targets and
// social_accounts.platform.
const (
	Mastodon  = "mastodon"
	Telegram  = "telegram"
	Facebook  = "facebook"
	Instagram = "instagram"
	Tiktok    = "tiktok"
)

// Request carries everything an adapter needs for one publish call.
// Credentials are already decrypted by the caller.
type Request struct {
	AccessToken string
	AccountRef  string // platform-side account/page/chat identifier
	ServerBase  string // instance base URL, only for federated platforms
	Text        string
	MediaURL    string // optional, publicly fetchable image URL
}

// Outcome is the unit the dispatcher aggregates over: one publish call,
// one result.
type Outcome struct {
	Platform       string    `json:"platform"`
	Success        bool      `json:"success"`
	ExternalPostID string    `json:"external_post_id,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// Adapter publishes a post to one platform. Implementations classify every
// failure into the ErrorKind taxonomy and never return Go errors for
// publish failures; the Outcome is the result either way. Each call
// represents a distinct user-intended attempt; idempotency is the
// dispatcher's job.
type Adapter interface {
	Name() string
	Publish(ctx context.Context, req Request) Outcome
}

func succeeded(name, externalID string) Outcome {
	return Outcome{Platform: name, Success: true, ExternalPostID: externalID}
}

func failed(name string, kind ErrorKind, msg string) Outcome {
	return Outcome{Platform: name, Success: false, ErrorKind: kind, ErrorMessage: msg}
}

// Registry maps platform identifiers to adapter instances. The set is
// fixed at construction; an identifier with no adapter is a per-target
// failure, not a pipeline error.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComposeText renders the caption plus hashtag list the way every adapter
// sends it: hashtags on their own line, '#' prefixed (they are stored bare).
func ComposeText(caption string, hashtags []string) string {
	if len(hashtags) == 0 {
		return caption
	}

	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		h = strings.TrimSpace(strings.TrimPrefix(h, "#"))
		if h != "" {
			tags = append(tags, "#"+h)
		}
	}
	if len(tags) == 0 {
		return caption
	}
	if caption == "" {
		return strings.Join(tags, " ")
	}
	return caption + "\n\n" + strings.Join(tags, " ")
}
