package visibility

import (
	"time"

	"lifeharness/internal/models"
)

// Audience ranks, from most private to most public. An unrecognized
// audience deliberately defaults to the most permissive rank; an
// unrecognized entry visibility defaults to the most private one.
var ranks = map[string]int{
	models.VisibilitySelf:    0,
	models.VisibilityTrusted: 1,
	models.VisibilityHeirs:   2,
	models.VisibilityPublic:  3,
}

func audienceRank(audience string) int {
	if rank, ok := ranks[audience]; ok {
		return rank
	}
	return ranks[models.VisibilityPublic]
}

func entryRank(vis string) int {
	if rank, ok := ranks[vis]; ok {
		return rank
	}
	return ranks[models.VisibilitySelf]
}

// Visible reports whether an entry may be shown to an audience at a given
// date. The rank check runs first; the seal can only further restrict.
// Event-sealed entries are treated as "event not yet occurred" since event
// completion is tracked outside this core, and an unrecognized seal type
// does not hide anything.
func Visible(entry *models.LifeEntry, audience string, asOf time.Time) bool {
	if entryRank(entry.Visibility) > audienceRank(audience) {
		return false
	}

	switch entry.SealType {
	case models.SealNone:
		return true
	case models.SealUntilDate:
		if !entry.SealReleaseAt.IsZero() && asOf.Before(entry.SealReleaseAt) {
			if blocked(entry.SealAudiencesBlocked, audience) {
				return false
			}
		}
		return true
	case models.SealUntilEvent, models.SealUntilManual:
		return !blocked(entry.SealAudiencesBlocked, audience)
	default:
		return true
	}
}

func blocked(list []string, audience string) bool {
	for _, item := range list {
		if item == audience {
			return true
		}
	}
	return false
}
