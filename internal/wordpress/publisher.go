package wordpress

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// DefaultStatus is sent with create requests unless overridden.
const DefaultStatus = "publish"

// Publisher upserts rendered Markdown into WordPress pages addressed by slug.
type Publisher struct {
	client    interfaces.PageClient
	converter interfaces.MarkdownConverter
	logger    interfaces.Logger
	status    string
	dryRun    bool

	mu        sync.Mutex
	resolvers map[string]*SlugResolver
}

var _ interfaces.PagePublisher = (*Publisher)(nil)

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(logger interfaces.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logging.Ensure(logger)
	}
}

// WithStatus overrides the status sent when creating pages.
func WithStatus(status string) PublisherOption {
	return func(p *Publisher) {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			p.status = trimmed
		}
	}
}

// WithDryRun renders and resolves without issuing any write.
func WithDryRun(enabled bool) PublisherOption {
	return func(p *Publisher) {
		p.dryRun = enabled
	}
}

// NewPublisher builds a Publisher over client, rendering with converter.
func NewPublisher(client interfaces.PageClient, converter interfaces.MarkdownConverter, opts ...PublisherOption) (*Publisher, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if converter == nil {
		return nil, ErrConverterRequired
	}
	p := &Publisher{
		client:    client,
		converter: converter,
		logger:    logging.NoOp(),
		status:    DefaultStatus,
		resolvers: map[string]*SlugResolver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Resolver returns the slug resolver for collection, creating it on first use.
func (p *Publisher) Resolver(collection string) *SlugResolver {
	key := collectionPath(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if resolver, ok := p.resolvers[key]; ok {
		return resolver
	}
	resolver := NewSlugResolver(p.client, key, p.logger)
	p.resolvers[key] = resolver
	return resolver
}

// Publish renders req.Markdown and creates or updates the page identified by
// req.Slug. A parent that cannot be resolved degrades to a root-level page.
// Requests carrying a ContentID are published as a direct update of that id.
func (p *Publisher) Publish(ctx context.Context, req interfaces.PublishRequest) (*interfaces.PublishResult, error) {
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}
	collection := collectionPath(req.Collection)
	logger := logging.WithFields(p.logger.WithContext(ctx), map[string]any{
		"slug":       slug,
		"collection": collection,
	})

	split := p.converter.SplitTitleAndContent(req.Markdown)

	if req.ContentID > 0 {
		return p.publishByID(ctx, logger, collection, slug, req.ContentID, split)
	}

	resolver := p.Resolver(collection)
	parentID := p.resolveParent(ctx, logger, resolver, req.ParentSlug)

	existingID, found, err := resolver.Resolve(ctx, slug)
	if err != nil {
		return nil, newPublishError(slug, err)
	}

	payload := interfaces.PagePayload{
		Title:     split.Title,
		Content:   split.Content,
		Slug:      slug,
		Parent:    &parentID,
		MenuOrder: &req.Order,
	}

	if p.dryRun {
		logger.Info("pagesync.publisher.dry_run", "exists", found, "page_id", existingID, "parent_id", parentID)
		return &interfaces.PublishResult{
			ID:       existingID,
			Title:    split.Title,
			ParentID: parentID,
			Action:   interfaces.PublishActionDryRun,
		}, nil
	}

	var (
		page   *interfaces.Page
		action interfaces.PublishAction
	)
	if found {
		action = interfaces.PublishActionUpdated
		page, err = p.client.UpdatePage(ctx, collection, existingID, payload)
	} else {
		action = interfaces.PublishActionCreated
		payload.Status = p.status
		page, err = p.client.CreatePage(ctx, collection, payload)
	}
	if err != nil {
		return nil, newPublishError(slug, err)
	}

	result := &interfaces.PublishResult{
		ID:       existingID,
		Title:    split.Title,
		ParentID: parentID,
		Action:   action,
	}
	if page != nil {
		if page.ID > 0 {
			result.ID = page.ID
		}
		result.Link = page.Link
	}
	resolver.Remember(slug, result.ID)

	logger.Info("pagesync.publisher.published",
		"action", string(action),
		"page_id", result.ID,
		"parent_id", parentID,
		"link", result.Link,
	)
	return result, nil
}

func (p *Publisher) resolveParent(ctx context.Context, logger interfaces.Logger, resolver *SlugResolver, parentSlug string) int {
	parentSlug = strings.TrimSpace(parentSlug)
	if parentSlug == "" {
		return 0
	}
	id, found, err := resolver.Resolve(ctx, parentSlug)
	if err != nil {
		logger.Warn("pagesync.publisher.parent_lookup_failed", "parent", parentSlug, "error", err)
		return 0
	}
	if !found {
		logger.Warn("pagesync.publisher.parent_not_found", "parent", parentSlug)
		return 0
	}
	return id
}

func (p *Publisher) publishByID(ctx context.Context, logger interfaces.Logger, collection, slug string, id int, split interfaces.DocumentSplit) (*interfaces.PublishResult, error) {
	result := &interfaces.PublishResult{
		ID:     id,
		Title:  split.Title,
		Action: interfaces.PublishActionUpdated,
	}
	if p.dryRun {
		result.Action = interfaces.PublishActionDryRun
		logger.Info("pagesync.publisher.dry_run", "page_id", id, "legacy", true)
		return result, nil
	}

	page, err := p.client.UpdatePage(ctx, collection, id, interfaces.PagePayload{
		Title:   split.Title,
		Content: split.Content,
		Slug:    slug,
	})
	if err != nil {
		return nil, newPublishError(slug, err)
	}
	if page != nil {
		result.Link = page.Link
	}

	logger.Info("pagesync.publisher.published", "action", string(result.Action), "page_id", id, "legacy", true, "link", result.Link)
	return result, nil
}
