package contact

// Topic is the inquiry category picked in the contact form.
type Topic string

const (
	TopicIntegration Topic = "Integration"
	TopicAutomation  Topic = "Automation"
	TopicCustomApp   Topic = "Custom App"
	TopicWebsite     Topic = "Website"
	TopicOther       Topic = "Other"
)

// DefaultTopic is preselected on every fresh form.
const DefaultTopic = TopicIntegration

// TopicOption is a <select> entry.
type TopicOption struct {
	Value    Topic
	Label    string
	Selected bool
}

var topicLabels = []TopicOption{
	{Value: TopicIntegration, Label: "API Integration"},
	{Value: TopicAutomation, Label: "Business Process Automation"},
	{Value: TopicCustomApp, Label: "Custom Web Application"},
	{Value: TopicWebsite, Label: "Informational Website"},
	{Value: TopicOther, Label: "Other Inquiry"},
}

// ParseTopic accepts exactly the wire values of the five topics.
func ParseTopic(s string) (Topic, bool) {
	for _, o := range topicLabels {
		if string(o.Value) == s {
			return o.Value, true
		}
	}
	return "", false
}

// Topics returns the select options with selected marked.
func Topics(selected Topic) []TopicOption {
	out := make([]TopicOption, len(topicLabels))
	for i, o := range topicLabels {
		o.Selected = o.Value == selected
		out[i] = o
	}
	return out
}

// Label returns the human label of t, or t itself when unknown.
func (t Topic) Label() string {
	for _, o := range topicLabels {
		if o.Value == t {
			return o.Label
		}
	}
	return string(t)
}
