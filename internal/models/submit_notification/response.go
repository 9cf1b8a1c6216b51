package models

type SubmitNotificationResponse struct {
	Sent    int `json:"sent"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
