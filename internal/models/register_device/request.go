package models

type RegisterDeviceRequest struct {
	Token   string `json:"token"`
	Role    string `json:"role"` // "passenger" or "driver"
	OwnerID string `json:"owner_id"`
}
