package chat

import (
	"encoding/json"
)

type ResponseType string

const (
	ResponseAnswered    ResponseType = "ANSWERED"
	ResponseEscalated   ResponseType = "ESCALATED"
	ResponseCollectInfo ResponseType = "COLLECT_INFO"
	ResponseError       ResponseType = "ERROR"
)

// InfoNeeded is the identity fields requested by COLLECT_INFO.
var InfoNeeded = []string{"name", "email"}

type UserInfo struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
}

type Turn struct {
	Question  string    `json:"user_question"`
	SessionID string    `json:"user_session_id,omitempty"`
	UserInfo  *UserInfo `json:"user_info,omitempty"`
}

// Response is one of four shapes selected by Type. Only the fields of that
// shape are marshalled.
type Response struct {
	Type            ResponseType
	Answer          string
	ConfidenceScore float64
	Message         string
	CaseID          string
	InfoNeeded      []string
}

func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case ResponseAnswered:
		return json.Marshal(struct {
			Type            ResponseType `json:"response_type"`
			Answer          string       `json:"answer"`
			ConfidenceScore float64      `json:"confidence_score"`
		}{r.Type, r.Answer, r.ConfidenceScore})
	case ResponseEscalated:
		return json.Marshal(struct {
			Type    ResponseType `json:"response_type"`
			Message string       `json:"message"`
			CaseID  string       `json:"case_id"`
		}{r.Type, r.Message, r.CaseID})
	case ResponseCollectInfo:
		info := r.InfoNeeded
		if info == nil {
			info = []string{}
		}
		return json.Marshal(struct {
			Type       ResponseType `json:"response_type"`
			Message    string       `json:"message"`
			InfoNeeded []string     `json:"info_needed"`
		}{r.Type, r.Message, info})
	default:
		return json.Marshal(struct {
			Type    ResponseType `json:"response_type"`
			Message string       `json:"message"`
		}{ResponseError, r.Message})
	}
}

func answered(answer string, score float64) Response {
	return Response{Type: ResponseAnswered, Answer: answer, ConfidenceScore: score}
}

func escalated(message, caseID string) Response {
	return Response{Type: ResponseEscalated, Message: message, CaseID: caseID}
}

func collectInfo(message string) Response {
	info := make([]string, len(InfoNeeded))
	copy(info, InfoNeeded)
	return Response{Type: ResponseCollectInfo, Message: message, InfoNeeded: info}
}

func errorResponse(message string) Response {
	return Response{Type: ResponseError, Message: message}
}
