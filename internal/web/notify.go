package web

import (
	"errors"

	"diseasepredict/internal/diagnosis"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Disclaimer is shown under every page.
const Disclaimer = "Disclaimer: This tool provides predictions based on statistical models and should not replace professional medical advice."

// Notification is the user-visible result of a submission, or a notice.
type Notification struct {
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Disease   string `json:"disease,omitempty"`
	Label     string `json:"label,omitempty"`
	Positive  *bool  `json:"positive,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Field     string `json:"field,omitempty"`
}

func successNotification(out diagnosis.Outcome, requestID string) Notification {
	positive := out.Positive
	return Notification{
		Level:     LevelSuccess,
		Message:   "Result: " + out.Label,
		RequestID: requestID,
		Disease:   out.Disease,
		Label:     out.Label,
		Positive:  &positive,
	}
}

func errorNotification(err error, disease, requestID string) Notification {
	n := Notification{Level: LevelError, RequestID: requestID, Disease: disease, Message: err.Error()}
	var de *diagnosis.Error
	if errors.As(err, &de) {
		n.Message = de.UserMessage()
		n.Kind = de.Kind.String()
		n.Field = de.Field
	}
	return n
}

func noticeNotification(f diagnosis.DiseaseForm) (Notification, bool) {
	if f.Notice == "" {
		return Notification{}, false
	}
	level := LevelWarning
	if f.NoticeLevel == diagnosis.NoticeCritical {
		level = LevelError
	}
	return Notification{Level: level, Message: f.Notice, Disease: f.ID}, true
}
