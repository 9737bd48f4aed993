// ABOUTME: MCP tool definitions and registration for the contact compass server
// ABOUTME: Exposes ingestion, classification and contact queries as MCP tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, store *sqlite.ContactStore, classifier *core.Classifier, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	handlers := &Handlers{
		store:       store,
		classifier:  classifier,
		ingester:    core.NewIngester(store, core.WithClassifier(classifier), core.WithLogger(logger)),
		categorizer: core.NewCategorizer(store, classifier, logger),
		logger:      logger,
	}

	// 1. ingest_csv - Merge one CSV export into the contact store
	server.AddTool(mcp.Tool{
		Name:        "ingest_csv",
		Description: "Ingest a contact CSV file. Rows are merged by email. Give either main_bucket to flag every row, or from_column to read each row's Main Bucket column.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the CSV file",
				},
				"main_bucket": map[string]interface{}{
					"type":        "string",
					"description": "Main bucket code for every row: biz, health, survivalist or none",
				},
				"from_column": map[string]interface{}{
					"type":        "boolean",
					"description": "Take each row's bucket from its Main Bucket column",
					"default":     false,
				},
				"classify": map[string]interface{}{
					"type":        "boolean",
					"description": "Classify every touched contact before committing",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}, handlers.IngestCSV)

	// 2. ingest_zip - Ingest every CSV inside a ZIP archive
	server.AddTool(mcp.Tool{
		Name:        "ingest_zip",
		Description: "Ingest every CSV inside a ZIP archive. Each file is its own batch; its bucket comes from its folder name or from main_bucket.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the ZIP archive",
				},
				"use_folders": map[string]interface{}{
					"type":        "boolean",
					"description": "Infer each file's bucket from its folder (default: true)",
					"default":     true,
				},
				"main_bucket": map[string]interface{}{
					"type":        "string",
					"description": "Bucket for files without a recognized folder, or for all files when use_folders is false",
				},
				"classify": map[string]interface{}{
					"type":        "boolean",
					"description": "Classify every touched contact before committing",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}, handlers.IngestZip)

	// 3. classify_tags - Run the classifier on an ad hoc tag list
	server.AddTool(mcp.Tool{
		Name:        "classify_tags",
		Description: "Classify a tag list into a main bucket and a personality bucket without touching the store.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"tags": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Contact tags",
				},
				"main_bucket": map[string]interface{}{
					"type":        "string",
					"description": "Optional main bucket hint; skips main bucket scoring",
				},
			},
			Required: []string{"tags"},
		},
	}, handlers.ClassifyTags)

	// 4. categorize_contacts - Batch classification over stored contacts
	server.AddTool(mcp.Tool{
		Name:        "categorize_contacts",
		Description: "Classify stored contacts. Mode 'unclassified' fills contacts without a main bucket; 'personality' recomputes personality buckets using the stored main bucket.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"unclassified", "personality"},
					"description": "Which contacts to classify (default: unclassified)",
					"default":     "unclassified",
				},
			},
		},
	}, handlers.CategorizeContacts)

	// 5. list_contacts - Page through contacts
	server.AddTool(mcp.Tool{
		Name:        "list_contacts",
		Description: "List contacts with optional bucket filters, search, paging and sorting.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"main_bucket": map[string]interface{}{
					"type":        "string",
					"description": "Only contacts with this main bucket assignment label",
				},
				"personality_bucket": map[string]interface{}{
					"type":        "string",
					"description": "Only contacts with this personality bucket assignment label",
				},
				"search": map[string]interface{}{
					"type":        "string",
					"description": "Substring match on email or full name",
				},
				"skip": map[string]interface{}{
					"type":        "number",
					"description": "Number of contacts to skip",
					"default":     0,
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of contacts to return (default: 100)",
					"default":     100,
				},
				"sort": map[string]interface{}{
					"type":        "string",
					"description": "Field to sort by (default: email)",
				},
			},
		},
	}, handlers.ListContacts)

	// 6. get_contact - Fetch one contact
	server.AddTool(mcp.Tool{
		Name:        "get_contact",
		Description: "Get one contact by email.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"email": map[string]interface{}{
					"type":        "string",
					"description": "Contact email, exactly as ingested",
				},
			},
			Required: []string{"email"},
		},
	}, handlers.GetContact)

	// 7. tag_counts - Distinct tags with usage counts
	server.AddTool(mcp.Tool{
		Name:        "tag_counts",
		Description: "List every distinct contact tag with how many contacts carry it.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.TagCounts)

	return handlers
}
