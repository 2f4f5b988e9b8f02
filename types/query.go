package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

// Event names exchanged over the websocket channel.
const (
	EventChatMessage         = "chat_message"
	EventTranslateDocument   = "translate_document"
	EventAIResponse          = "ai_response"
	EventTranslationStart    = "translation_start"
	EventTranslationProgress = "translation_progress"
	EventTranslationComplete = "translation_complete"
	EventError               = "error"
)

// Envelope is a single websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ChatParams struct {
	Message   string        `json:"message" validate:"required"`
	History   []HistoryTurn `json:"history"`
	SessionID string        `json:"sessionId"`
}

type TranslateParams struct {
	Language string `json:"language" validate:"required"`
	Filename string `json:"filename" validate:"required"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type TranslationStart struct {
	Message string `json:"message"`
}

type TranslationProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

type TranslationComplete struct {
	Pages []string `json:"pages"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *TranslateParams) Validate() map[string]string {
	return validateStruct(params)
}

func (m *Message) Validate() map[string]string {
	return validateStruct(m)
}

func validateStruct(v any) map[string]string {
	if err := validate.Struct(v); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"_": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
}
