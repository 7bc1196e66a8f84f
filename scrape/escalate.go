package scrape

import (
	"fmt"
	"strings"
)

// Notification is an escalation request: what a failed run should say.
// Whether and how it is dispatched is the notifier's business.
type Notification struct {
	Subject string
	Body    string
}

// Escalate inspects a run result and returns nil when every fund succeeded,
// or one aggregated notification otherwise. A single notification per run
// prevents a storm when many funds share a root cause, e.g. the site being
// down.
func Escalate(result *RunResult) *Notification {
	failed := result.Failed()
	if failed == 0 {
		return nil
	}
	total := len(result.Outcomes)

	var b strings.Builder
	fmt.Fprintf(&b, "Fund price extraction completed with failures.\n\n")
	fmt.Fprintf(&b, "Targets:   %d\n", total)
	fmt.Fprintf(&b, "Succeeded: %d\n", total-failed)
	fmt.Fprintf(&b, "Failed:    %d\n\n", failed)
	b.WriteString("Failures:\n")
	for _, o := range result.Outcomes {
		if o.OK() {
			continue
		}
		fmt.Fprintf(&b, "  - %s: %s after %s\n",
			o.Target.Label(), o.Reason, attempts(o.Attempts))
	}

	return &Notification{
		Subject: fmt.Sprintf("fund price extraction: %d of %d funds failed", failed, total),
		Body:    b.String(),
	}
}

// Fatal builds the escalation for a run that aborted before producing a
// result, e.g. a persistence failure. Fires unconditionally.
func Fatal(stage string, err error) *Notification {
	return &Notification{
		Subject: "fund price extraction: run aborted",
		Body: fmt.Sprintf("Fund price extraction aborted during %s.\n\nError: %v\n", stage, err),
	}
}

// Recovery builds the all-clear notification sent when a run succeeds after
// the previous run had failures.
func Recovery() *Notification {
	return &Notification{
		Subject: "fund price extraction: recovered",
		Body:    "Run was successful after a prior failure.\n",
	}
}

func attempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}
