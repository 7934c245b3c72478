package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/membermap/membermap/internal/core/domain"
)

// TaskQueue is the default queue the import worker polls.
const TaskQueue = "member-import-queue"

// ImportInput is the input for the member import workflow.
type ImportInput struct {
	Key string // object key of a JSON member array
}

// ImportResult summarises a finished import.
type ImportResult struct {
	Fetched   int
	Stored    int
	Rejected  int
	Announced bool
}

// MemberImportWorkflow fetches a member list from object storage, validates
// it, upserts the survivors and announces the change. A failed announcement
// does not fail the import; maps pick the new members up on their next
// reload.
func MemberImportWorkflow(ctx workflow.Context, input ImportInput) (ImportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting member import", "key", input.Key)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var result ImportResult

	// Step 1: Fetch
	var members []domain.Member
	if err := workflow.ExecuteActivity(ctx, "FetchMembers", input.Key).Get(ctx, &members); err != nil {
		return result, err
	}
	result.Fetched = len(members)

	// Step 2: Validate
	var validated ValidationResult
	if err := workflow.ExecuteActivity(ctx, "ValidateMembers", members).Get(ctx, &validated); err != nil {
		return result, err
	}
	result.Rejected = validated.Rejected

	// Step 3: Store
	if err := workflow.ExecuteActivity(ctx, "StoreMembers", validated.Members).Get(ctx, &result.Stored); err != nil {
		return result, err
	}

	// Step 4: Announce (best effort)
	announceCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(announceCtx, "AnnounceMembers", result.Stored).Get(ctx, nil); err != nil {
		logger.Warn("announce failed", "error", err)
	} else {
		result.Announced = true
	}

	logger.Info("Member import finished", "stored", result.Stored, "rejected", result.Rejected)
	return result, nil
}
