package models

// Time buckets place a memory in a coarse life stage. The order here is the
// canonical order used for eligibility and coverage grids.
const (
	TimePre10     = "pre10"
	TimeTens      = "10s"
	TimeTwenties  = "20s"
	TimeThirties  = "30s"
	TimeForties   = "40s"
	TimeFiftyPlus = "50plus"
)

var TimeBuckets = []string{
	TimePre10,
	TimeTens,
	TimeTwenties,
	TimeThirties,
	TimeForties,
	TimeFiftyPlus,
}

// Topic buckets classify what a memory is about.
const (
	TopicFamilyOfOrigin      = "family_of_origin"
	TopicFriendships         = "friendships"
	TopicRomanticLove        = "romantic_love"
	TopicChildren            = "children"
	TopicWorkCareer          = "work_career"
	TopicMoneyStatus         = "money_status"
	TopicHealthBody          = "health_body"
	TopicCreativityPlay      = "creativity_play"
	TopicBeliefsValues       = "beliefs_values"
	TopicCrisesTurningPoints = "crises_turning_points"
)

var TopicBuckets = []string{
	TopicFamilyOfOrigin,
	TopicFriendships,
	TopicRomanticLove,
	TopicChildren,
	TopicWorkCareer,
	TopicMoneyStatus,
	TopicHealthBody,
	TopicCreativityPlay,
	TopicBeliefsValues,
	TopicCrisesTurningPoints,
}

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
)

// Visibility tiers, from most private to most public.
const (
	VisibilitySelf    = "self"
	VisibilityTrusted = "trusted"
	VisibilityHeirs   = "heirs"
	VisibilityPublic  = "public"
)

const (
	SealNone        = "none"
	SealUntilDate   = "until_date"
	SealUntilEvent  = "until_event"
	SealUntilManual = "until_manual"
)

const (
	IntensityLight    = "light"
	IntensityBalanced = "balanced"
	IntensityDeep     = "deep"
)

func IsTimeBucket(s string) bool {
	for _, b := range TimeBuckets {
		if b == s {
			return true
		}
	}
	return false
}

func IsTopicBucket(s string) bool {
	for _, b := range TopicBuckets {
		if b == s {
			return true
		}
	}
	return false
}
