// ABOUTME: Batch Categorization Runner applying the classifier across stored contacts
// ABOUTME: Each contact is written as its own unit; a failure stops the run
package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/models"
)

// RunResult summarizes one categorization run
type RunResult struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
}

// Categorizer classifies stored contacts in bulk
type Categorizer struct {
	store      Store
	classifier *Classifier
	logger     *zap.Logger
}

// NewCategorizer creates a runner. A nil logger is replaced with a no-op.
func NewCategorizer(store Store, classifier *Classifier, logger *zap.Logger) *Categorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Categorizer{store: store, classifier: classifier, logger: logger}
}

// ClassifyUnclassified assigns both labels to contacts without a main bucket
func (c *Categorizer) ClassifyUnclassified(ctx context.Context) (RunResult, error) {
	contacts, err := c.store.ListUnclassified(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list unclassified contacts: %w", err)
	}
	return c.run(ctx, "unclassified", contacts, func(ct *models.Contact) (string, string) {
		return c.classifier.Classify(ct.Tags, "")
	})
}

// ReclassifyPersonality fills in personality labels, keeping an existing main
// assignment as the hint
func (c *Categorizer) ReclassifyPersonality(ctx context.Context) (RunResult, error) {
	contacts, err := c.store.ListMissingPersonality(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list contacts missing personality: %w", err)
	}
	return c.run(ctx, "personality", contacts, func(ct *models.Contact) (string, string) {
		return c.classifier.Classify(ct.Tags, ct.MainBucket)
	})
}

// ReclassifyLabels recomputes both labels for contacts currently assigned any
// of labels, e.g. after the reference table changes
func (c *Categorizer) ReclassifyLabels(ctx context.Context, labels []string) (RunResult, error) {
	if len(labels) == 0 {
		return RunResult{}, nil
	}
	contacts, err := c.store.ListByLabels(ctx, labels)
	if err != nil {
		return RunResult{}, fmt.Errorf("list contacts by label: %w", err)
	}
	return c.run(ctx, "labels", contacts, func(ct *models.Contact) (string, string) {
		return c.classifier.Classify(ct.Tags, "")
	})
}

func (c *Categorizer) run(ctx context.Context, mode string, contacts []*models.Contact, classify func(*models.Contact) (string, string)) (RunResult, error) {
	res := RunResult{Total: len(contacts)}
	for _, ct := range contacts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		main, personality := classify(ct)
		if main == ct.MainBucket && personality == ct.PersonalityBucket {
			continue
		}
		if err := c.store.SetClassification(ctx, ct.ID, main, personality); err != nil {
			return res, fmt.Errorf("classify %s: %w", ct.Email, err)
		}
		res.Updated++
		c.logger.Debug("contact classified",
			zap.String("email", ct.Email),
			zap.String("main", main),
			zap.String("personality", personality))
	}

	c.logger.Info("categorization finished",
		zap.String("mode", mode),
		zap.Int("total", res.Total),
		zap.Int("updated", res.Updated))
	return res, nil
}
