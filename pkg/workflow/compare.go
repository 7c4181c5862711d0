package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/loopwork/flowstudio/pkg/diff"
	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/loopwork/flowstudio/pkg/otelhelper"
	"github.com/loopwork/flowstudio/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VersionInfo is the publish metadata of one side of a comparison.
type VersionInfo struct {
	Version     int       `json:"version"`
	PublishedBy string    `json:"published_by"`
	PublishedAt time.Time `json:"published_at"`
	Notes       string    `json:"notes,omitempty"`
}

// Comparison is the result of diffing two published versions.
type Comparison struct {
	WorkflowID string            `json:"workflow_id"`
	From       VersionInfo       `json:"from"`
	To         VersionInfo       `json:"to"`
	Changes    []diff.ChangeItem `json:"changes"`
	Summary    diff.Summary      `json:"summary"`
}

// CompareService fetches two published versions and runs the differ.
type CompareService struct {
	persistence persistence.Persistence
	tracer      trace.Tracer
}

// NewCompareService creates a compare service. The tracer may be nil.
func NewCompareService(persistence persistence.Persistence, tracer trace.Tracer) *CompareService {
	return &CompareService{
		persistence: persistence,
		tracer:      tracer,
	}
}

// Compare diffs version `from` against version `to` of the same workflow.
func (s *CompareService) Compare(ctx context.Context, workflowID string, from, to int) (*Comparison, error) {
	if s.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "workflow.compare",
			attribute.String(otelhelper.WorkflowIDKey, workflowID),
			attribute.Int("flowstudio.compare.from", from),
			attribute.Int("flowstudio.compare.to", to),
		)
		defer span.End()
	}

	older, err := s.persistence.VersionByNumber(ctx, workflowID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch version %d: %w", from, err)
	}

	newer, err := s.persistence.VersionByNumber(ctx, workflowID, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch version %d: %w", to, err)
	}

	changes := diff.Compare(older.Definition, newer.Definition)

	return &Comparison{
		WorkflowID: workflowID,
		From:       versionInfo(older),
		To:         versionInfo(newer),
		Changes:    changes,
		Summary:    diff.Summarize(changes),
	}, nil
}

func versionInfo(version *models.WorkflowVersion) VersionInfo {
	return VersionInfo{
		Version:     version.Version,
		PublishedBy: version.PublishedBy,
		PublishedAt: version.PublishedAt,
		Notes:       version.Notes,
	}
}
