package engine

import (
	"sort"

	"lifeharness/internal/llm"
	"lifeharness/internal/models"
)

type focusPair struct {
	timeBucket  string
	topicBucket string
}

// SelectNextTarget picks the next (time, topic) slice to focus a question
// on. It prefers the lowest-scored slice that was not targeted by any of
// the recent questions; if every candidate was recently asked, it falls
// back to the lowest-scored one so the loop always makes progress.
func SelectNextTarget(coverage map[string]map[string]int, recent []*models.Question) *llm.TargetFocus {
	var candidates []llm.TargetFocus
	for timeBucket, topics := range coverage {
		for topicBucket, score := range topics {
			candidates = append(candidates, llm.TargetFocus{
				TimeBucket:  timeBucket,
				TopicBucket: topicBucket,
				Score:       score,
			})
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	recentPairs := make(map[focusPair]bool)
	for _, question := range recent {
		if len(question.TimeFocus) == 0 || len(question.TopicFocus) == 0 {
			continue
		}
		for _, timeBucket := range question.TimeFocus {
			for _, topicBucket := range question.TopicFocus {
				recentPairs[focusPair{timeBucket, topicBucket}] = true
			}
		}
	}

	// Score first, then bucket names as deterministic tie-breaks.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		if candidates[i].TimeBucket != candidates[j].TimeBucket {
			return candidates[i].TimeBucket < candidates[j].TimeBucket
		}
		return candidates[i].TopicBucket < candidates[j].TopicBucket
	})

	for i := range candidates {
		if !recentPairs[focusPair{candidates[i].TimeBucket, candidates[i].TopicBucket}] {
			return &candidates[i]
		}
	}

	return &candidates[0]
}
