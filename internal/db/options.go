package db

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
)

// OptionSource projects repository entities into the lightweight options the
// resolver matches against. Occurrence options retain their course id so
// dependent-field filtering can narrow them by resolved parent.
type OptionSource struct {
	repo Repository
	now  func() time.Time
}

func NewOptionSource(repo Repository) *OptionSource {
	return &OptionSource{repo: repo, now: time.Now}
}

func (s *OptionSource) List(ctx context.Context, tenantID, entity string) ([]model.SystemOption, error) {
	switch entity {
	case model.EntityBranch:
		branches, err := s.repo.ListActiveBranches(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		options := make([]model.SystemOption, 0, len(branches))
		for _, b := range branches {
			options = append(options, model.SystemOption{
				ID:   b.ID,
				Name: b.Name,
				Original: map[string]interface{}{
					"isActive": b.IsActive,
				},
			})
		}
		return options, nil

	case model.EntityCourse:
		courses, err := s.repo.ListActiveCourses(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		options := make([]model.SystemOption, 0, len(courses))
		for _, c := range courses {
			options = append(options, model.SystemOption{
				ID:   c.ID,
				Name: c.Name,
				Original: map[string]interface{}{
					"branchId": c.BranchID,
					"isActive": c.IsActive,
				},
			})
		}
		return options, nil

	case model.EntityOccurrence:
		occurrences, err := s.repo.ListUpcomingOccurrences(ctx, tenantID, s.now())
		if err != nil {
			return nil, err
		}
		options := make([]model.SystemOption, 0, len(occurrences))
		for _, o := range occurrences {
			options = append(options, model.SystemOption{
				ID:   o.ID,
				Name: o.Label(),
				Original: map[string]interface{}{
					"courseId": o.CourseID,
					"startsAt": o.StartsAt,
				},
			})
		}
		return options, nil

	default:
		return nil, fmt.Errorf("unknown lookup entity: %s", entity)
	}
}
