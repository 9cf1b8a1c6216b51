package models

import (
	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

type GetHistoryResponse struct {
	Records []broadcastmodels.DeliveryRecord `json:"records"`
}
