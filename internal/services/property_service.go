package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
)

// ErrPropertyNotFound is returned for unknown account numbers.
var ErrPropertyNotFound = errors.New("property not found")

// PropertyService answers operator lookups against the authoritative store.
type PropertyService interface {
	// GetProperty returns the current snapshot of an account.
	// Returns ErrPropertyNotFound if the account is unknown.
	GetProperty(ctx context.Context, accountNumber string) (*models.Property, error)

	// GetHistory returns an account's change events, oldest first.
	// Returns ErrPropertyNotFound if the account is unknown.
	GetHistory(ctx context.Context, accountNumber string) ([]models.ChangeEvent, error)

	// GetBatchChanges returns the change events a batch emitted.
	GetBatchChanges(ctx context.Context, batchID string) ([]models.ChangeEvent, error)
}

// propertyService is the concrete implementation of PropertyService.
type propertyService struct {
	properties repository.PropertyRepository
	history    repository.HistoryRepository
	log        *logger.Logger
}

// NewPropertyService creates a new instance of PropertyService.
func NewPropertyService(properties repository.PropertyRepository, history repository.HistoryRepository, log *logger.Logger) PropertyService {
	return &propertyService{
		properties: properties,
		history:    history,
		log:        log,
	}
}

func (s *propertyService) GetProperty(ctx context.Context, accountNumber string) (*models.Property, error) {
	account := strings.ToUpper(strings.TrimSpace(accountNumber))
	if account == "" {
		return nil, ErrPropertyNotFound
	}

	p, err := s.properties.FindByAccount(ctx, account)
	if err != nil {
		s.log.Error("Failed to query property", err, map[string]interface{}{
			"account": account,
		})
		return nil, fmt.Errorf("failed to query property: %w", err)
	}

	// Repository returns nil, nil when no property found - transform to domain error
	if p == nil {
		return nil, ErrPropertyNotFound
	}
	return p, nil
}

func (s *propertyService) GetHistory(ctx context.Context, accountNumber string) ([]models.ChangeEvent, error) {
	p, err := s.GetProperty(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	events, err := s.history.ListHistory(ctx, p.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return events, nil
}

func (s *propertyService) GetBatchChanges(ctx context.Context, batchID string) ([]models.ChangeEvent, error) {
	events, err := s.history.ListHistoryByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch history: %w", err)
	}
	return events, nil
}
