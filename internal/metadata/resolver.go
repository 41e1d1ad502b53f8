package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/tech-news-daily/apptrack/internal/sensortower"
	"github.com/tech-news-daily/apptrack/internal/util"
)

// maxDescriptionLen caps stored descriptions, in runes.
const maxDescriptionLen = 500

// MetadataAPI is the subset of the Sensor Tower client used for resolution.
type MetadataAPI interface {
	GetUnifiedApp(ctx context.Context, id sensortower.AppID) (*sensortower.UnifiedApp, error)
	GetPlatformApp(ctx context.Context, os string, id sensortower.AppID) (*sensortower.PlatformApp, error)
}

// Resolver builds display records from the metadata endpoints.
type Resolver struct {
	api MetadataAPI
}

// NewResolver creates a resolver backed by the given API client.
func NewResolver(api MetadataAPI) *Resolver {
	return &Resolver{api: api}
}

// Resolve builds the display record for one identifier: the unified record
// supplies name, publisher, icon and store links; one platform detail call
// (iOS preferred, its descriptions are richer) supplies the description.
// Only a failed unified call is an error; a failed detail call just leaves
// the description empty.
func (r *Resolver) Resolve(ctx context.Context, id sensortower.AppID) (AppMetadata, error) {
	if id == "" {
		return AppMetadata{}, errors.New("empty app identifier")
	}

	app, err := r.api.GetUnifiedApp(ctx, id)
	if err != nil {
		return AppMetadata{}, fmt.Errorf("failed to resolve app %s: %w", id, err)
	}

	meta := AppMetadata{
		Name:      app.Name,
		IconURL:   app.IconURL,
		Publisher: app.UnifiedPublisherName,
	}

	if meta.Name == "" && len(app.SubApps) > 0 {
		meta.Name = app.SubApps[0].Name
	}
	if meta.Name == "" {
		meta.Name = UnknownName
	}

	if meta.Publisher == "" {
		meta.Publisher = app.PublisherName
	}
	if meta.Publisher == "" {
		meta.Publisher = UnknownPublisher
	}

	// Store links come from the first sub-app per platform only; the tail of
	// the list is regional variants.
	ios := app.SubAppByOS("ios")
	android := app.SubAppByOS("android")

	if ios != nil && ios.ID != "" {
		meta.IOSStoreURL = "https://apps.apple.com/app/id" + string(ios.ID)
	}
	if android != nil && android.ID != "" {
		meta.AndroidStoreURL = "https://play.google.com/store/apps/details?id=" + string(android.ID)
	}

	meta.Description = r.fetchDescription(ctx, ios, android)

	return meta, nil
}

// fetchDescription fetches one platform detail record and selects its best
// description text. Failures are logged and yield an empty description.
func (r *Resolver) fetchDescription(ctx context.Context, ios, android *sensortower.SubApp) string {
	target := ios
	if target == nil {
		target = android
	}
	if target == nil || target.ID == "" {
		return ""
	}

	app, err := r.api.GetPlatformApp(ctx, target.OS, target.ID)
	if err != nil {
		log.Debug().
			Err(err).
			Str("os", target.OS).
			Str("platform_id", string(target.ID)).
			Msg("Platform detail lookup failed")
		return ""
	}

	return selectDescription(app.Description)
}

// selectDescription picks the first non-empty field in priority order:
// summary, subtitle, short description, then the long-form description with
// markup stripped. Everything except the subtitle is truncated.
func selectDescription(d sensortower.DescriptionPayload) string {
	if plain := strings.TrimSpace(d.Plain); plain != "" {
		return util.TruncateRunes(plain, maxDescriptionLen)
	}
	if summary := strings.TrimSpace(d.Summary); summary != "" {
		return util.TruncateRunes(summary, maxDescriptionLen)
	}
	if subtitle := strings.TrimSpace(d.Subtitle); subtitle != "" {
		return subtitle
	}
	if short := strings.TrimSpace(d.Short); short != "" {
		return util.TruncateRunes(short, maxDescriptionLen)
	}
	if full := strings.TrimSpace(d.Full); full != "" {
		return util.TruncateRunes(stripMarkup(full), maxDescriptionLen)
	}
	return ""
}

// stripMarkup extracts the text of an HTML fragment, separating text nodes
// with spaces so adjacent elements don't run together, and collapses
// whitespace.
func stripMarkup(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return util.CollapseWhitespace(fragment)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}

	return util.CollapseWhitespace(strings.Join(parts, " "))
}
