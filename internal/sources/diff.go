package sources

import (
	"slices"
	"strings"
)

// AutomationChange classifies how a source's automation block changed.
type AutomationChange int

const (
	// Unchanged means the automation block is structurally identical.
	Unchanged AutomationChange = iota
	// ParserOnlyChanged means parsing configuration changed but the schedule did not.
	ParserOnlyChanged
	// ScheduleChanged means the schedule was added, removed, or given a new expression.
	ScheduleChanged
)

func (c AutomationChange) String() string {
	switch c {
	case ParserOnlyChanged:
		return "parser-only"
	case ScheduleChanged:
		return "schedule"
	default:
		return "unchanged"
	}
}

// ChangeSet is the structural difference between two versions of a source.
type ChangeSet struct {
	Automation  AutomationChange
	NameChanged bool
	paths       []string
}

// Paths returns the modified field paths in document order.
// Automation changes are reported at sub-document granularity
// (automation.parser, automation.regexParsing, automation.schedule).
func (c ChangeSet) Paths() []string {
	return slices.Clone(c.paths)
}

// Modified reports whether path or any path beneath it changed.
func (c ChangeSet) Modified(path string) bool {
	for _, p := range c.paths {
		if p == path || strings.HasPrefix(p, path+".") {
			return true
		}
	}
	return false
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.paths) == 0
}

// Diff compares prev and next. The rule ARN is derived state and never
// counts as a schedule change.
func Diff(prev, next *Source) ChangeSet {
	var c ChangeSet
	mark := func(changed bool, path string) {
		if changed {
			c.paths = append(c.paths, path)
		}
	}

	c.NameChanged = prev.Name != next.Name
	mark(c.NameChanged, "name")
	mark(prev.Origin != next.Origin, "origin")
	mark(prev.Format != next.Format, "format")

	pa, na := automationOf(prev), automationOf(next)
	parserChanged := !equalPtr(pa.Parser, na.Parser, func(a, b *Parser) bool { return *a == *b })
	regexChanged := !equalPtr(pa.RegexParsing, na.RegexParsing, func(a, b *RegexParsing) bool {
		return slices.Equal(a.Fields, b.Fields)
	})
	scheduleChanged := !equalPtr(pa.Schedule, na.Schedule, func(a, b *Schedule) bool {
		return a.AWSScheduleExpression == b.AWSScheduleExpression
	})

	mark(parserChanged, "automation.parser")
	mark(regexChanged, "automation.regexParsing")
	mark(scheduleChanged, "automation.schedule")

	switch {
	case scheduleChanged:
		c.Automation = ScheduleChanged
	case parserChanged || regexChanged:
		c.Automation = ParserOnlyChanged
	}

	mark(!slices.Equal(prev.NotificationRecipients, next.NotificationRecipients), "notificationRecipients")
	mark(!equalPtr(prev.DateFilter, next.DateFilter, func(a, b *DateFilter) bool { return *a == *b }), "dateFilter")

	return c
}

func automationOf(s *Source) Automation {
	if s.Automation == nil {
		return Automation{}
	}
	a := *s.Automation
	if a.Schedule != nil && a.Schedule.AWSScheduleExpression == "" {
		a.Schedule = nil
	}
	return a
}

func equalPtr[T any](a, b *T, eq func(a, b *T) bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return eq(a, b)
}
