package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
)

func newConnID() string {
	return uuid.NewString()
}

func encodeEvent(event models.LiveEvent) ([]byte, error) {
	return json.Marshal(event)
}

func errorEvent(err error) models.LiveEvent {
	return models.LiveEvent{
		Type: models.EventError,
		Data: models.LiveError{Kind: string(apperr.KindOf(err)), Error: apperr.Message(err)},
	}
}
