package realtime

import "strings"

// Run topics carry the canonical messages of one run: "run:<id>".
const runTopicPrefix = "run:"

// TopicRun returns the topic carrying the given run's messages.
func TopicRun(runID string) string {
	return runTopicPrefix + runID
}

// ParseRunTopic extracts the run id from a run topic.
func ParseRunTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, runTopicPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func IsSupportedTopic(topic string) bool {
	_, ok := ParseRunTopic(topic)
	return ok
}
