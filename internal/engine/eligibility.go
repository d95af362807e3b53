package engine

import (
	"time"

	"lifeharness/internal/models"
)

// Time buckets open up cumulatively with age. pre10 joins the pool together
// with 10s so an interview never starts with childhood alone.
var timeBucketMinAges = []struct {
	bucket string
	minAge int
}{
	{models.TimePre10, 10},
	{models.TimeTens, 10},
	{models.TimeTwenties, 20},
	{models.TimeThirties, 30},
	{models.TimeForties, 40},
	{models.TimeFiftyPlus, 50},
}

// EligibleBuckets derives which time and topic buckets are currently
// askable for a user. Pure function: profile drives the age gating and the
// avoid list, the thread only matters for its declared children focus.
func EligibleBuckets(profile *models.Profile, thread *models.Thread, now time.Time) (timeBuckets, topicBuckets []string) {
	age := profile.Age(now)

	for _, entry := range timeBucketMinAges {
		if age >= entry.minAge {
			timeBuckets = append(timeBuckets, entry.bucket)
		}
	}

	avoid := make(map[string]bool, len(profile.AvoidTopics))
	for _, topic := range profile.AvoidTopics {
		avoid[topic] = true
	}

	for _, topic := range models.TopicBuckets {
		if avoid[topic] {
			continue
		}
		// children is only askable for users who have children, or in a
		// thread the user explicitly pointed at children.
		if topic == models.TopicChildren && !profile.HasChildren && !containsString(thread.TopicFocus, models.TopicChildren) {
			continue
		}
		topicBuckets = append(topicBuckets, topic)
	}

	return timeBuckets, topicBuckets
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
