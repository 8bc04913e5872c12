package adapters

import (
	"fmt"
	"strings"

	"github.com/kirillm/action-guard/internal/domain"
)

// Content action types.
const (
	TypeContentDraft   = "content_draft"
	TypeContentPreview = "content_preview"
	TypePublishBlog    = "publish_blog"
	TypeAnnounce       = "announce_release"
)

// PostType returns the action type for a social post, e.g. post_tweet.
func PostType(platform string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" || platform == "twitter" || platform == "x" {
		platform = "tweet"
	}
	return "post_" + platform
}

// ContentAdapter builds content-engine actions. Published content can be
// taken down, so posts are reversible; announcements are not.
type ContentAdapter struct {
	base
}

// NewContentAdapter creates the adapter.
func NewContentAdapter(factory *domain.ActionFactory) *ContentAdapter {
	return &ContentAdapter{base: newBase(factory)}
}

func (a *ContentAdapter) Engine() domain.Engine { return domain.EngineContent }

// Draft saves a draft without publishing.
func (a *ContentAdapter) Draft(title, body string) (domain.Action, error) {
	return a.factory.New(domain.EngineContent, domain.CategoryContent, TypeContentDraft).
		Description("Save draft: "+title).
		Param("title", title).
		Param("body", body).
		Reversible(true).
		Urgency(domain.UrgencyLow).
		Build()
}

// Post publishes text to a social platform.
func (a *ContentAdapter) Post(platform, text string, urgency domain.Urgency) (domain.Action, error) {
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}
	return a.factory.New(domain.EngineContent, domain.CategoryContent, PostType(platform)).
		Description(fmt.Sprintf("Post to %s: %s", platform, truncate(text, 80))).
		Param("platform", platform).
		Param("text", text).
		Reversible(true).
		Urgency(urgency).
		Build()
}

// PublishBlog publishes an article; files lists the content files touched,
// which lets file-snapshot rollback restore them.
func (a *ContentAdapter) PublishBlog(slug string, words int, files []string) (domain.Action, error) {
	b := a.factory.New(domain.EngineContent, domain.CategoryContent, TypePublishBlog).
		Description(fmt.Sprintf("Publish blog post %q (%d words)", slug, words)).
		Param("slug", slug).
		Param("words", words).
		Reversible(true)
	if len(files) > 0 {
		b.Param("files", append([]string(nil), files...)).Changes(0, len(files))
	}
	return b.Build()
}

// Announce sends a release announcement; it cannot be unsent.
func (a *ContentAdapter) Announce(channel, text string) (domain.Action, error) {
	return a.factory.New(domain.EngineContent, domain.CategoryContent, TypeAnnounce).
		Description(fmt.Sprintf("Announce on %s: %s", channel, truncate(text, 80))).
		Param("channel", channel).
		Param("text", text).
		Urgency(domain.UrgencyHigh).
		Build()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
