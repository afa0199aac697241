package event

import "strings"

// Topic is a dot-separated event type such as "child-process.exit".
type Topic string

// Topics emitted by the process supervisor.
const (
	TopicStdout Topic = "child-process.stdout"
	TopicStderr Topic = "child-process.stderr"
	TopicExit   Topic = "child-process.exit"

	// TopicAll matches every child process event.
	TopicAll Topic = "child-process.*"
)

// Wildcard segments understood by Matches.
const (
	WildcardSingle = "*"
	WildcardMulti  = "**"
	Separator      = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Matches reports whether the concrete topic t matches pattern.
//
// "*" matches exactly one segment; "**" matches zero or more trailing
// segments and is only meaningful as the last segment.
func (t Topic) Matches(pattern Topic) bool {
	if pattern == t {
		return true
	}
	if pattern == WildcardMulti {
		return true
	}

	ps := pattern.Segments()
	ts := t.Segments()

	for i, seg := range ps {
		if seg == WildcardMulti {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if seg != WildcardSingle && seg != ts[i] {
			return false
		}
	}
	return len(ps) == len(ts)
}
