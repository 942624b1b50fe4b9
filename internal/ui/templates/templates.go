// Package templates renders the chat page and the fragments the SSE handlers
// patch into it. Components are generated from templates.templ; run
// `templ generate` after editing it.
package templates

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"b2b-analyst/internal/models"
)

const (
	MessagesID = "messages"
	SummaryID  = "summary"
	ErrorID    = "chat-error"
)

func won(v int64) string {
	return message.NewPrinter(language.Korean).Sprintf("%d원", v)
}

func counted(v int, unit string) string {
	return message.NewPrinter(language.Korean).Sprintf("%d", v) + unit
}

func messageClass(role models.Role, pending bool) string {
	class := "message " + string(role)
	if pending {
		class += " pending"
	}
	return class
}
