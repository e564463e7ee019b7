package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

// institutionalThreshold is the property count above which any owner is
// treated as institutional.
const institutionalThreshold = 10

// List limits shared by the query services.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Service-level errors
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrInvalidLimit      = errors.New("limit out of range")
)

// PortfolioAggregator maintains the derived owner portfolios.
type PortfolioAggregator interface {
	// Rebuild recomputes every portfolio from the authoritative store and
	// replaces the stored set in one write. Returns the number of portfolios.
	Rebuild(ctx context.Context) (int, error)

	// ListPortfolios returns up to limit portfolios ordered by owner name.
	// Returns ErrInvalidLimit if limit is outside 1..MaxListLimit.
	ListPortfolios(ctx context.Context, limit int) ([]models.OwnerPortfolio, error)

	// GetPortfolio returns one owner's portfolio.
	// Returns ErrPortfolioNotFound if the owner holds nothing.
	GetPortfolio(ctx context.Context, ownerName string) (*models.OwnerPortfolio, error)
}

// portfolioAggregator is the concrete implementation of PortfolioAggregator.
type portfolioAggregator struct {
	repo            repository.PortfolioRepository
	log             *logger.Logger
	includeInactive bool
}

// NewPortfolioAggregator creates a new instance of PortfolioAggregator.
// includeInactive decides whether properties missing from the latest feed
// still count toward their last known owner.
func NewPortfolioAggregator(repo repository.PortfolioRepository, log *logger.Logger, includeInactive bool) PortfolioAggregator {
	return &portfolioAggregator{
		repo:            repo,
		log:             log,
		includeInactive: includeInactive,
	}
}

func (a *portfolioAggregator) Rebuild(ctx context.Context) (int, error) {
	holdings, err := a.repo.ListOwnerHoldings(ctx, a.includeInactive)
	if err != nil {
		return 0, fmt.Errorf("failed to load owner holdings: %w", err)
	}

	portfolios := BuildPortfolios(holdings, a.includeInactive)

	if err := a.repo.ReplacePortfolios(ctx, portfolios); err != nil {
		return 0, fmt.Errorf("failed to replace portfolios: %w", err)
	}

	a.log.Info("Portfolios rebuilt", map[string]interface{}{
		"holdings":         len(holdings),
		"portfolios":       len(portfolios),
		"include_inactive": a.includeInactive,
	})

	return len(portfolios), nil
}

func (a *portfolioAggregator) ListPortfolios(ctx context.Context, limit int) ([]models.OwnerPortfolio, error) {
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidLimit, MaxListLimit, limit)
	}
	portfolios, err := a.repo.ListPortfolios(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return portfolios, nil
}

func (a *portfolioAggregator) GetPortfolio(ctx context.Context, ownerName string) (*models.OwnerPortfolio, error) {
	name := normalizeOwner(ownerName)
	if name == "" {
		return nil, ErrPortfolioNotFound
	}

	portfolio, err := a.repo.FindPortfolio(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}

	// Repository returns nil, nil when no portfolio found - transform to domain error
	if portfolio == nil {
		return nil, ErrPortfolioNotFound
	}
	return portfolio, nil
}

// BuildPortfolios groups holdings by owner name. Blank owners are skipped;
// missing acreage and values count as zero. The result is sorted by owner name.
func BuildPortfolios(holdings []models.OwnerHolding, includeInactive bool) []models.OwnerPortfolio {
	byOwner := make(map[string]*models.OwnerPortfolio)

	for _, h := range holdings {
		if !includeInactive && !h.IsActive {
			continue
		}
		if h.OwnerName == nil {
			continue
		}
		name := strings.TrimSpace(*h.OwnerName)
		if name == "" {
			continue
		}

		p, ok := byOwner[name]
		if !ok {
			p = &models.OwnerPortfolio{OwnerName: name}
			byOwner[name] = p
		}
		p.TotalProperties++
		p.TotalAcres += valueOrZero(h.AreaAcres)
		p.TotalPortfolioValue += valueOrZero(h.TotalValue)
		if active := h.ActivityDate(); active.After(p.LastActiveDate) {
			p.LastActiveDate = active
		}
	}

	out := make([]models.OwnerPortfolio, 0, len(byOwner))
	for _, p := range byOwner {
		p.AvgPropertyValue = p.TotalPortfolioValue / float64(p.TotalProperties)
		p.OwnerType = ClassifyOwner(p.OwnerName)
		p.IsInstitutional = p.OwnerType != models.OwnerTypeIndividual || p.TotalProperties > institutionalThreshold
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].OwnerName < out[j].OwnerName
	})
	return out
}

// ClassifyOwner infers the owner type from whole words in the name, trying
// LLC, trust, corporate and partnership markers in that order.
func ClassifyOwner(name string) models.OwnerType {
	words := ownerWords(name)

	switch {
	case words["LLC"]:
		return models.OwnerTypeLLC
	case words["TRUST"] || words["TRUSTEE"] || words["TRUSTEES"]:
		return models.OwnerTypeTrust
	case words["CORP"] || words["CORPORATION"] || words["INC"] || words["INCORPORATED"]:
		return models.OwnerTypeCorporate
	case words["LP"] || words["LTD"] || words["LLP"]:
		return models.OwnerTypePartnership
	}
	return models.OwnerTypeIndividual
}

// ownerWords splits an owner name into upper-case words. Dots are dropped
// first so "L.L.C." and "INC." match their bare forms.
func ownerWords(name string) map[string]bool {
	cleaned := strings.ReplaceAll(strings.ToUpper(name), ".", "")
	fields := strings.FieldsFunc(cleaned, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}
	return words
}

// normalizeOwner applies the same casing and spacing the feed normalizer uses.
func normalizeOwner(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}
