// Package sources implements the source domain for Curator.
// A source is a case-data ingestion configuration whose automation block is
// reconciled against an external scheduler: creating, updating, and deleting
// a source puts or removes the rule that triggers its retrieval function.
package sources

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/curator/pkg/storage"
)

// Source is a named case-data ingestion configuration.
type Source struct {
	ID                     uuid.UUID   `json:"id"`
	Name                   string      `json:"name"`
	Origin                 Origin      `json:"origin"`
	Format                 string      `json:"format,omitempty"`
	Automation             *Automation `json:"automation,omitempty"`
	NotificationRecipients []string    `json:"notificationRecipients"`
	DateFilter             *DateFilter `json:"dateFilter,omitempty"`
	Uploads                []Upload    `json:"uploads"`
	CreatedAt              time.Time   `json:"createdAt"`
	UpdatedAt              time.Time   `json:"updatedAt"`
}

// Origin identifies where a source's data is published.
type Origin struct {
	URL     string `json:"url"`
	License string `json:"license,omitempty"`
}

// Automation declares how a source is parsed and when it runs.
// Parser and RegexParsing are mutually exclusive.
type Automation struct {
	Parser       *Parser       `json:"parser,omitempty"`
	RegexParsing *RegexParsing `json:"regexParsing,omitempty"`
	Schedule     *Schedule     `json:"schedule,omitempty"`
}

// Parser references the function that ingests data for a source.
type Parser struct {
	AWSLambdaARN string `json:"awsLambdaArn"`
}

// RegexParsing extracts fields inline with regular expressions.
type RegexParsing struct {
	Fields []RegexField `json:"fields"`
}

// RegexField is a single named extraction.
type RegexField struct {
	Name  string `json:"name"`
	Regex string `json:"regex"`
}

// Schedule requests automatic retrieval. AWSRuleARN is set only after the
// external rule has been created.
type Schedule struct {
	AWSRuleARN            string `json:"awsRuleArn,omitempty"`
	AWSScheduleExpression string `json:"awsScheduleExpression"`
}

// DateOp compares an ingested record's date against the filter window.
type DateOp string

const (
	DateOpEQ DateOp = "EQ"
	DateOpLT DateOp = "LT"
)

// DateFilter is an ingestion windowing hint relative to the current day.
type DateFilter struct {
	NumDaysBeforeToday int    `json:"numDaysBeforeToday"`
	Op                 DateOp `json:"op"`
}

// UploadStatus is the state of a single ingestion attempt.
type UploadStatus string

const (
	UploadSuccess    UploadStatus = "SUCCESS"
	UploadError      UploadStatus = "ERROR"
	UploadInProgress UploadStatus = "IN_PROGRESS"
)

// Valid reports whether s is a known upload status.
func (s UploadStatus) Valid() bool {
	switch s {
	case UploadSuccess, UploadError, UploadInProgress:
		return true
	}
	return false
}

// Upload records one ingestion attempt. PayloadKey references the stored
// payload blob, when one was uploaded.
type Upload struct {
	ID         uuid.UUID      `json:"id"`
	Status     UploadStatus   `json:"status"`
	Summary    *UploadSummary `json:"summary,omitempty"`
	Created    time.Time      `json:"created"`
	PayloadKey string         `json:"payloadKey,omitempty"`
}

// UploadSummary reports the outcome of an ingestion attempt.
type UploadSummary struct {
	NumCreated int    `json:"numCreated"`
	NumUpdated int    `json:"numUpdated"`
	Error      string `json:"error,omitempty"`
}

// CreateUploadCommand carries a new upload entry and its optional payload.
type CreateUploadCommand struct {
	Status  UploadStatus   `json:"status"`
	Summary *UploadSummary `json:"summary,omitempty"`
	Payload *Payload       `json:"-"`
}

// UpdateUploadCommand replaces the status and/or summary of an upload entry.
// Nil fields are left unchanged.
type UpdateUploadCommand struct {
	Status  *UploadStatus  `json:"status,omitempty"`
	Summary *UploadSummary `json:"summary,omitempty"`
}

// Payload is the raw data submitted with an upload.
type Payload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PayloadDownload is an open payload stream. The caller must close Body.
type PayloadDownload struct {
	*storage.BlobResult
	Filename string
}

// RetrievalResult is the response of an on-demand retrieval invocation.
type RetrievalResult struct {
	SourceID uuid.UUID `json:"sourceId"`
	Response any       `json:"response"`
}

// RuleName is the external rule name for a source.
func RuleName(id uuid.UUID) string {
	return id.String()
}

// RuleTargetID is the rule target id bound to a source's retrieval function.
func RuleTargetID(id uuid.UUID) string {
	return id.String() + "_Target"
}

// StatementID is the invoke permission statement id for a source.
func StatementID(id uuid.UUID) string {
	return id.String()
}

// RuleDescription is the human-readable description attached to a source's rule.
func RuleDescription(name string) string {
	return fmt.Sprintf("Scheduled ingestion of source: %s", name)
}

func (s *Source) schedule() *Schedule {
	if s.Automation == nil {
		return nil
	}
	return s.Automation.Schedule
}

// RuleARN returns the ARN of the source's live rule, or "" when none exists.
func (s *Source) RuleARN() string {
	if sch := s.schedule(); sch != nil {
		return sch.AWSRuleARN
	}
	return ""
}

func (s *Source) parserARN() string {
	if s.Automation == nil || s.Automation.Parser == nil {
		return ""
	}
	return s.Automation.Parser.AWSLambdaARN
}

func (s *Source) findUpload(id uuid.UUID) *Upload {
	for i := range s.Uploads {
		if s.Uploads[i].ID == id {
			return &s.Uploads[i]
		}
	}
	return nil
}

// normalize fills empty collections and collapses an automation block
// with nothing in it.
func (s *Source) normalize() {
	if s.NotificationRecipients == nil {
		s.NotificationRecipients = []string{}
	}
	if s.Uploads == nil {
		s.Uploads = []Upload{}
	}
	if a := s.Automation; a != nil && a.Parser == nil && a.RegexParsing == nil && a.Schedule == nil {
		s.Automation = nil
	}
}

// dropEmptySchedule treats a schedule without an expression as removed.
// Only updates read it that way; on create it is a validation failure.
func (s *Source) dropEmptySchedule() {
	if sch := s.schedule(); sch != nil && sch.AWSScheduleExpression == "" {
		s.Automation.Schedule = nil
	}
}

// Clone returns a deep copy of s.
func (s *Source) Clone() *Source {
	c := *s
	c.NotificationRecipients = slices.Clone(s.NotificationRecipients)

	if s.Automation != nil {
		a := *s.Automation
		if a.Parser != nil {
			p := *a.Parser
			a.Parser = &p
		}
		if a.RegexParsing != nil {
			rp := RegexParsing{Fields: slices.Clone(a.RegexParsing.Fields)}
			a.RegexParsing = &rp
		}
		if a.Schedule != nil {
			sch := *a.Schedule
			a.Schedule = &sch
		}
		c.Automation = &a
	}

	if s.DateFilter != nil {
		df := *s.DateFilter
		c.DateFilter = &df
	}

	if s.Uploads != nil {
		c.Uploads = make([]Upload, len(s.Uploads))
		for i, u := range s.Uploads {
			if u.Summary != nil {
				sum := *u.Summary
				u.Summary = &sum
			}
			c.Uploads[i] = u
		}
	}

	return &c
}
