package service

import (
	"context"
	"errors"

	"docextract/internal/schema/models"
	"docextract/pkg/domerr"
	"docextract/pkg/sentinel"
)

// nextVersion computes the next version for a lineage: one past the highest
// version across all records regardless of status, or 1 for an empty lineage.
// Reading the whole lineage (not a single record) keeps the result correct
// after deprecated versions accumulate.
func (s *Service) nextVersion(ctx context.Context, lineage models.Lineage) (int, error) {
	latest, err := s.store.FindLatestVersion(ctx, lineage)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 1, nil
		}
		return 0, domerr.Wrap(err, domerr.CodeInternal, "compute next version")
	}
	return latest.Version + 1, nil
}
