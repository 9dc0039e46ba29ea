package bot

import "strings"

// InsertUsedContexts adds a "*Used Contexts*" line to a report explanation so
// readers can see which guidance files shaped the forecast. The line goes
// right after the "*Bot Name*:" metadata line of the summary; if that line is
// absent it goes after the first blank line following "# SUMMARY", then falls
// back to appending or prepending. No contexts means no change.
func InsertUsedContexts(explanation string, contexts []string) string {
	if len(contexts) == 0 {
		return explanation
	}
	line := "*Used Contexts*: " + strings.Join(contexts, ", ") + "\n\n"

	if pos := strings.Index(explanation, "*Bot Name*:"); pos >= 0 {
		lineEnd := strings.Index(explanation[pos:], "\n")
		if lineEnd >= 0 {
			cut := pos + lineEnd + 1
			return explanation[:cut] + line + explanation[cut:]
		}
		return explanation + "\n\n" + line
	}

	if pos := strings.Index(explanation, "# SUMMARY"); pos >= 0 {
		blank := strings.Index(explanation[pos:], "\n\n")
		if blank >= 0 {
			cut := pos + blank + 2
			return explanation[:cut] + line + explanation[cut:]
		}
		return explanation + "\n\n" + line
	}

	return line + explanation
}
