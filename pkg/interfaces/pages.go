package interfaces

import "context"

// Page mirrors the subset of a remote WordPress page record the sync tool
// reads back after lookups and writes.
type Page struct {
	ID        int    `json:"id"`
	Slug      string `json:"slug"`
	Link      string `json:"link,omitempty"`
	Status    string `json:"status,omitempty"`
	Parent    int    `json:"parent"`
	MenuOrder int    `json:"menu_order"`
	Title     string `json:"-"`
}

// PagePayload is the body sent with create and update requests.
type PagePayload struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Slug      string `json:"slug"`
	Parent    *int   `json:"parent,omitempty"`
	MenuOrder *int   `json:"menu_order,omitempty"`
	Status    string `json:"status,omitempty"`
}

// PageClient is the remote page API used by the resolver and the publisher.
// FindPageBySlug returns found=false with a nil error when no page matches;
// when several pages match, the first one is returned.
type PageClient interface {
	FindPageBySlug(ctx context.Context, collection, slug string) (*Page, bool, error)
	CreatePage(ctx context.Context, collection string, payload PagePayload) (*Page, error)
	UpdatePage(ctx context.Context, collection string, id int, payload PagePayload) (*Page, error)
}

// PublishAction describes which branch of the upsert a publish took.
type PublishAction string

const (
	PublishActionCreated PublishAction = "created"
	PublishActionUpdated PublishAction = "updated"
	PublishActionDryRun  PublishAction = "dry_run"
)

// PublishRequest describes a single page upsert.
type PublishRequest struct {
	Collection string
	Markdown   string
	Slug       string
	ParentSlug string
	Order      int
	// ContentID selects the legacy update-by-id mode when greater than zero.
	ContentID int
}

// PublishResult reports the outcome of a successful publish.
type PublishResult struct {
	ID       int
	Link     string
	Title    string
	ParentID int
	Action   PublishAction
}

// PagePublisher turns Markdown into a remote page.
type PagePublisher interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
}
