package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// pageSize is the Notion query page size.
const pageSize = 100

// Database is the slice of a Notion database an export needs.
type Database interface {
	// Rows returns every page of the database, following pagination.
	Rows(ctx context.Context, databaseID string) ([]notionapi.Page, error)
	// Insert adds a page and returns its id.
	Insert(ctx context.Context, databaseID string, props notionapi.Properties) (string, error)
	// Patch overwrites the given properties of a page.
	Patch(ctx context.Context, pageID string, props notionapi.Properties) error
	// Archive moves a page to the trash.
	Archive(ctx context.Context, pageID string) error
}

// Client implements Database on the jomei/notionapi SDK.
type Client struct {
	api *notionapi.Client
}

// NewClient returns a Client authenticated with an integration token.
func NewClient(token string) *Client {
	return &Client{api: notionapi.NewClient(notionapi.Token(token))}
}

func (c *Client) Rows(ctx context.Context, databaseID string) ([]notionapi.Page, error) {
	var (
		rows   []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), &notionapi.DatabaseQueryRequest{
			PageSize:    pageSize,
			StartCursor: cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("Rows: querying database %s: %w", databaseID, err)
		}
		rows = append(rows, resp.Results...)
		if !resp.HasMore {
			return rows, nil
		}
		cursor = resp.NextCursor
	}
}

func (c *Client) Insert(ctx context.Context, databaseID string, props notionapi.Properties) (string, error) {
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: props,
	})
	if err != nil {
		return "", fmt.Errorf("Insert: %w", err)
	}
	return string(page.ID), nil
}

func (c *Client) Patch(ctx context.Context, pageID string, props notionapi.Properties) error {
	if _, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
		return fmt.Errorf("Patch: page %s: %w", pageID, err)
	}
	return nil
}

func (c *Client) Archive(ctx context.Context, pageID string) error {
	if _, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("Archive: page %s: %w", pageID, err)
	}
	return nil
}

var _ Database = (*Client)(nil)
