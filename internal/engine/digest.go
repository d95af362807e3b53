package engine

import (
	"context"
	"fmt"

	"lifeharness/internal/llm"
	"lifeharness/internal/models"
	"lifeharness/internal/storage"
)

const (
	digestEntryWindow     = 30
	digestGroupHighlights = 3
	digestFreeformWindow  = 5
	digestFreeformRunes   = 400
)

// DigestBuilder assembles the bounded continuity context handed to the
// model: recent life entries grouped by (time, topic) plus the current
// thread's latest freeform notes. The windows above keep it from growing
// with thread length.
type DigestBuilder struct {
	store storage.Storage
}

func NewDigestBuilder(store storage.Storage) *DigestBuilder {
	return &DigestBuilder{store: store}
}

func (b *DigestBuilder) Build(ctx context.Context, thread *models.Thread, allowedTime, allowedTopics []string) (*llm.ContextDigest, error) {
	digest := &llm.ContextDigest{
		TimeTopicSummaries: []llm.TimeTopicSummary{},
		RecentFreeforms:    []llm.DigestFreeform{},
	}

	entries, err := b.store.ListRecentLifeEntries(ctx, thread.UserID, digestEntryWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent entries: %w", err)
	}

	timeAllowed := make(map[string]bool, len(allowedTime))
	for _, bucket := range allowedTime {
		timeAllowed[bucket] = true
	}
	topicAllowed := make(map[string]bool, len(allowedTopics))
	for _, bucket := range allowedTopics {
		topicAllowed[bucket] = true
	}

	type groupKey struct {
		timeBucket string
		topic      string
	}
	grouped := make(map[groupKey][]llm.Highlight)
	var groupOrder []groupKey

	for _, entry := range entries {
		if len(allowedTime) > 0 && !timeAllowed[entry.TimeBucket] {
			continue
		}

		// Topicless entries file under a synthetic "general" bucket, which is
		// subject to the same filter and so drops out whenever an allowed
		// list is in force.
		topics := entry.TopicBuckets
		if len(topics) == 0 {
			topics = []string{"general"}
		}

		for _, topic := range topics {
			if len(allowedTopics) > 0 && !topicAllowed[topic] {
				continue
			}
			key := groupKey{entry.TimeBucket, topic}
			if _, seen := grouped[key]; !seen {
				groupOrder = append(groupOrder, key)
			}
			grouped[key] = append(grouped[key], llm.Highlight{
				Headline:  entry.Headline,
				Timeframe: entry.TimeframeLabel,
				Summary:   entry.Distilled,
				Tone:      entry.EmotionalTone,
				Tags:      entry.Tags,
			})
		}
	}

	for _, key := range groupOrder {
		highlights := grouped[key]
		if len(highlights) > digestGroupHighlights {
			highlights = highlights[:digestGroupHighlights]
		}
		digest.TimeTopicSummaries = append(digest.TimeTopicSummaries, llm.TimeTopicSummary{
			TimeBucket: key.timeBucket,
			Topic:      key.topic,
			Highlights: highlights,
		})
	}

	freeforms, err := b.store.ListThreadFreeforms(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread freeforms: %w", err)
	}
	if len(freeforms) > digestFreeformWindow {
		freeforms = freeforms[len(freeforms)-digestFreeformWindow:]
	}

	assumedTime := thread.TimeFocus
	if len(assumedTime) == 0 {
		assumedTime = []string{"unspecified"}
	}
	assumedTopics := thread.TopicFocus
	if len(assumedTopics) == 0 {
		assumedTopics = []string{"open"}
	}

	for _, freeform := range freeforms {
		digest.RecentFreeforms = append(digest.RecentFreeforms, llm.DigestFreeform{
			Index:         freeform.IndexInThread,
			Text:          truncateRunes(freeform.Text, digestFreeformRunes),
			AssumedTime:   assumedTime,
			AssumedTopics: assumedTopics,
		})
	}

	return digest, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
