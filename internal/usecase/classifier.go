package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/msrptw/backend/internal/domain"
)

// Resolution is the classification state a product ends in
type Resolution int

const (
	// ResolutionPending means automatic matching failed and manual review is due
	ResolutionPending Resolution = iota
	// ResolutionAuto means a Part matched by name or alias
	ResolutionAuto
	// ResolutionManual means a Reviewer chose the Part
	ResolutionManual
	// ResolutionAbandoned means the Reviewer skipped the product for this run
	ResolutionAbandoned
)

func (r Resolution) String() string {
	switch r {
	case ResolutionAuto:
		return "auto"
	case ResolutionManual:
		return "manual"
	case ResolutionAbandoned:
		return "abandoned"
	default:
		return "pending"
	}
}

// Classified reports whether the resolution assigned a Part
func (r Resolution) Classified() bool {
	return r == ResolutionAuto || r == ResolutionManual
}

// Classifier matches product names against a category's parts and falls back
// to a Reviewer for names no part matches. It is not safe for concurrent use;
// classification runs on a single goroutine after the fetch phase.
type Classifier struct {
	reviewer         domain.Reviewer
	logger           *zap.Logger
	suggestThreshold float64
}

// NewClassifier creates a classifier; a nil reviewer abandons every pending product
func NewClassifier(reviewer domain.Reviewer, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{reviewer: reviewer, logger: logger, suggestThreshold: DefaultSuggestThreshold}
}

// MatchPart returns the first part of the category that matches name.
// A part matches when its own name or one of its positive aliases is a
// substring of name, unless one of its anti aliases is a substring as well.
// The positive alias that matched is returned when the part name did not.
// Part and alias names are normalized the same way as name before comparing.
func MatchPart(category *domain.Category, name string) (*domain.Part, *domain.Alias) {
	if category == nil || name == "" {
		return nil, nil
	}

	for i := range category.Parts {
		part := &category.Parts[i]

		found := containsKeyword(name, part.Name)
		var matched *domain.Alias
		for j := range part.Aliases {
			alias := &part.Aliases[j]
			if !alias.Anti && containsKeyword(name, alias.Name) {
				found = true
				if matched == nil {
					matched = alias
				}
			}
		}
		if !found {
			continue
		}

		if vetoed(part, name) {
			continue
		}

		return part, matched
	}

	return nil, nil
}

// containsKeyword reports whether the normalized keyword occurs in name
func containsKeyword(name, keyword string) bool {
	keyword = Normalize(keyword)
	return keyword != "" && strings.Contains(name, keyword)
}

// ClassifyAuto assigns the first matching part of the category to the product.
// It returns ResolutionAuto on a match and ResolutionPending otherwise.
func (c *Classifier) ClassifyAuto(category *domain.Category, product *domain.Product) Resolution {
	part, alias := MatchPart(category, Normalize(product.Name))
	if part == nil {
		c.logger.Debug("no part matched",
			zap.String("name", product.Name),
			zap.String("category", category.Name))
		return ResolutionPending
	}

	assignPart(product, part, alias)
	c.logger.Info("product classified",
		zap.String("name", product.Name),
		zap.String("category", category.Name),
		zap.String("part", part.Name),
		zap.String("mode", ResolutionAuto.String()))
	return ResolutionAuto
}

// ClassifyManual asks the Reviewer to choose one of the category's parts.
// Non-numeric or out-of-range answers are logged and prompted again; an empty
// answer abandons the product. A Reviewer error abandons the product and is
// returned so the caller can stop prompting.
func (c *Classifier) ClassifyManual(ctx context.Context, category *domain.Category, product *domain.Product) (Resolution, error) {
	if c.reviewer == nil || len(category.Parts) == 0 {
		c.abandon(product, category)
		return ResolutionAbandoned, nil
	}

	prompt := domain.ReviewPrompt{
		Name:    product.Name,
		Origin:  product.Origin,
		Options: category.PartNames(),
	}
	if suggestion, ok := SuggestPart(category, product.Name, c.suggestThreshold); ok {
		prompt.Suggestion = suggestion.Part.Name
	}

	for {
		answer, err := c.reviewer.Prompt(ctx, prompt)
		if err != nil {
			c.abandon(product, category)
			if errors.Is(err, domain.ErrReviewAborted) {
				return ResolutionAbandoned, err
			}
			return ResolutionAbandoned, errors.Join(domain.ErrReviewAborted, err)
		}

		answer = strings.TrimSpace(answer)
		if answer == "" {
			c.abandon(product, category)
			return ResolutionAbandoned, nil
		}

		index, err := strconv.Atoi(answer)
		if err != nil || index < 0 || index >= len(category.Parts) {
			c.logger.Warn("invalid review input",
				zap.String("name", product.Name),
				zap.String("input", answer))
			continue
		}

		part := &category.Parts[index]
		assignPart(product, part, nil)
		c.logger.Info("product classified",
			zap.String("name", product.Name),
			zap.String("category", category.Name),
			zap.String("part", part.Name),
			zap.String("mode", ResolutionManual.String()))
		return ResolutionManual, nil
	}
}

func (c *Classifier) abandon(product *domain.Product, category *domain.Category) {
	c.logger.Info("product abandoned",
		zap.String("name", product.Name),
		zap.String("category", category.Name),
		zap.String("origin", string(product.Origin)))
}

func assignPart(product *domain.Product, part *domain.Part, alias *domain.Alias) {
	partID := part.ID
	product.PartID = &partID
	product.AliasID = nil
	if alias != nil {
		aliasID := alias.ID
		product.AliasID = &aliasID
	}
}
