package models

type SubmitNotificationRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Target string `json:"target"` // "all", "passengers", or "drivers"
}
