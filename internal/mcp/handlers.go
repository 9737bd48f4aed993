// ABOUTME: MCP tool handler implementations for the contact compass server
// ABOUTME: Failures are reported as tool result errors, never as Go errors
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/models"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	store       *sqlite.ContactStore
	classifier  *core.Classifier
	ingester    *core.Ingester
	categorizer *core.Categorizer
	logger      *zap.Logger
}

// IngestCSV handles the ingest_csv tool
func (h *Handlers) IngestCSV(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path argument is required and must be a string"), nil
	}

	opts := core.IngestOptions{
		FromColumn: request.GetBool("from_column", false),
		Filename:   path,
		Classify:   request.GetBool("classify", false),
	}
	if raw := request.GetString("main_bucket", ""); raw != "" {
		b, ok := models.ParseMainBucket(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown main bucket %q", raw)), nil
		}
		opts.Target = b
	}

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open file: %v", err)), nil
	}
	defer func() { _ = f.Close() }()

	res, err := h.ingester.IngestCSV(ctx, f, opts)
	if err != nil {
		h.logger.Warn("ingest_csv failed", zap.String("path", path), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"path":   path,
		"result": res,
	})
}

// IngestZip handles the ingest_zip tool
func (h *Handlers) IngestZip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path argument is required and must be a string"), nil
	}

	opts := core.ArchiveOptions{
		UseFolders: request.GetBool("use_folders", true),
		Classify:   request.GetBool("classify", false),
	}
	if raw := request.GetString("main_bucket", ""); raw != "" {
		b, ok := models.ParseMainBucket(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown main bucket %q", raw)), nil
		}
		opts.Override = b
	}

	zr, err := core.OpenArchive(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer func() { _ = zr.Close() }()

	files, err := h.ingester.IngestArchive(ctx, &zr.Reader, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("archive ingest failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"path":  path,
		"files": files,
	})
}

// ClassifyTags handles the classify_tags tool
func (h *Handlers) ClassifyTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags := request.GetStringSlice("tags", nil)
	if tags == nil {
		return mcp.NewToolResultError("tags argument is required and must be an array of strings"), nil
	}

	c := h.classifier.Explain(tags, request.GetString("main_bucket", ""))
	return jsonResult(c)
}

// CategorizeContacts handles the categorize_contacts tool
func (h *Handlers) CategorizeContacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := request.GetString("mode", "unclassified")

	var (
		res core.RunResult
		err error
	)
	switch mode {
	case "unclassified":
		res, err = h.categorizer.ClassifyUnclassified(ctx)
	case "personality":
		res, err = h.categorizer.ReclassifyPersonality(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q (want unclassified or personality)", mode)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("categorization stopped after %d updates: %v", res.Updated, err)), nil
	}

	return jsonResult(map[string]interface{}{
		"mode":    mode,
		"total":   res.Total,
		"updated": res.Updated,
	})
}

// ListContacts handles the list_contacts tool
func (h *Handlers) ListContacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := sqlite.ListOptions{
		Skip:              request.GetInt("skip", 0),
		Limit:             request.GetInt("limit", 100),
		MainBucket:        request.GetString("main_bucket", ""),
		PersonalityBucket: request.GetString("personality_bucket", ""),
		Search:            request.GetString("search", ""),
		SortBy:            request.GetString("sort", ""),
	}
	if opts.Skip < 0 || opts.Limit < 0 {
		return mcp.NewToolResultError("skip and limit must not be negative"), nil
	}

	contacts, err := h.store.List(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list contacts: %v", err)), nil
	}
	total, err := h.store.Count(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count contacts: %v", err)), nil
	}

	out := make([]map[string]interface{}, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, contactSummary(c))
	}
	return jsonResult(map[string]interface{}{
		"total":    total,
		"skip":     opts.Skip,
		"limit":    opts.Limit,
		"contacts": out,
	})
}

// GetContact handles the get_contact tool
func (h *Handlers) GetContact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := request.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError("email argument is required and must be a string"), nil
	}

	c, err := h.store.Get(ctx, email)
	if errors.Is(err, sqlite.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no contact with email %s", email)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get contact: %v", err)), nil
	}
	return jsonResult(c)
}

// TagCounts handles the tag_counts tool
func (h *Handlers) TagCounts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := h.store.TagCounts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count tags: %v", err)), nil
	}
	if counts == nil {
		counts = []sqlite.TagCount{}
	}
	return jsonResult(map[string]interface{}{
		"tags": counts,
	})
}

func contactSummary(c *models.Contact) map[string]interface{} {
	return map[string]interface{}{
		"id":                 c.ID.String(),
		"email":              c.Email,
		"full_name":          c.FullName,
		"tags":               c.Tags,
		"flags":              c.Flags(),
		"main_bucket":        c.MainBucket,
		"personality_bucket": c.PersonalityBucket,
		"updated_at":         c.UpdatedAt.Format(time.RFC3339),
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
