package sources

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// NotificationType is the automation transition a notification announces.
type NotificationType string

const (
	NotificationAdd    NotificationType = "Add"
	NotificationRemove NotificationType = "Remove"
)

// Notification is a rendered message ready to send.
type Notification struct {
	Subject string
	Body    string
}

const subjectTemplate = `Automation {{ if eq .Type "Add" }}added{{ else }}removed{{ end }} for source: {{ .Source.Name }}`

const bodyTemplate = `Automation was {{ if eq .Type "Add" }}added to{{ else }}removed from{{ end }} a source.

Source ID: {{ .Source.ID }}
Name:      {{ .Source.Name }}
URL:       {{ .Source.Origin.URL }}
Format:    {{ .Source.Format | default "unspecified" }}
License:   {{ .Source.Origin.License | default "unspecified" }}
{{- if eq .Type "Add" }}
Schedule:  {{ .Expression }}
Parser:    {{ .Parser | default "none" }}
{{- end }}
`

var (
	subjectTmpl = template.Must(template.New("subject").Funcs(sprig.TxtFuncMap()).Parse(subjectTemplate))
	bodyTmpl    = template.Must(template.New("body").Funcs(sprig.TxtFuncMap()).Parse(bodyTemplate))
)

type notificationData struct {
	Type       NotificationType
	Source     *Source
	Expression string
	Parser     string
}

// RenderNotification builds the message announcing t for src. The schedule
// expression and parser are included for additions only.
func RenderNotification(t NotificationType, src *Source) (Notification, error) {
	data := notificationData{Type: t, Source: src}
	if t == NotificationAdd {
		if sch := src.schedule(); sch != nil {
			data.Expression = sch.AWSScheduleExpression
		}
		data.Parser = src.parserARN()
	}

	var subject, body strings.Builder
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return Notification{}, err
	}
	if err := bodyTmpl.Execute(&body, data); err != nil {
		return Notification{}, err
	}

	return Notification{Subject: subject.String(), Body: body.String()}, nil
}
