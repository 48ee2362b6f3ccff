package workflow

import "recontext/internal/domain"

// BuildCorrectionTask derives the next attempt's task from a rejected one.
// The source subtree and scenario descriptions carry over verbatim; only the
// correction context changes. Identical inputs yield identical tasks.
func BuildCorrectionTask(prev domain.GenerationTask, previousOutput string, errs []domain.ValidationError) domain.GenerationTask {
	next := prev
	next.Correction = &domain.CorrectionContext{
		PreviousOutput: previousOutput,
		Errors:         append([]domain.ValidationError(nil), errs...),
	}
	return next
}
