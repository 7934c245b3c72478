package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/usecases"
	"github.com/membermap/membermap/internal/pkg/metrics"
)

// ValidationResult is returned by the ValidateMembers activity.
type ValidationResult struct {
	Members  []domain.Member
	Rejected int
}

// ImportActivities holds the activity implementations for the member import workflow.
type ImportActivities struct {
	Import *usecases.ImportService
}

// FetchMembers downloads the member list stored under key.
func (a *ImportActivities) FetchMembers(ctx context.Context, key string) ([]domain.Member, error) {
	members, err := a.Import.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch members: %w", err)
	}
	return members, nil
}

// ValidateMembers drops members without an id, a name or a usable location.
func (a *ImportActivities) ValidateMembers(ctx context.Context, members []domain.Member) (ValidationResult, error) {
	valid, rejected := usecases.Validate(members)
	if rejected > 0 {
		slog.Warn("rejected members", "count", rejected, "kept", len(valid))
	}
	return ValidationResult{Members: valid, Rejected: rejected}, nil
}

// StoreMembers upserts members and returns how many were written.
func (a *ImportActivities) StoreMembers(ctx context.Context, members []domain.Member) (int, error) {
	if err := a.Import.Store(ctx, members); err != nil {
		return 0, fmt.Errorf("store members: %w", err)
	}
	metrics.MembersImported.Add(float64(len(members)))
	return len(members), nil
}

// AnnounceMembers tells API instances to rebuild their maps.
func (a *ImportActivities) AnnounceMembers(ctx context.Context, count int) error {
	return a.Import.Announce(ctx, count)
}
