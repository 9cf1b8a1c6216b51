package models

type ReportFailedTokenRequest struct {
	Token string `json:"token"`
}
