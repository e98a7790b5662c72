package publisher

import (
	"encoding/json"
	"fmt"

	"stocks-ngine/src/models"
)

// Envelope is the wire form shared by every push channel.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const InstrumentUpdateType = "instrument_update"

// -----------------------------------------------------------------------------

func EncodeStatus(msg models.MStatusMessage) ([]byte, error) {
	data, err := json.Marshal(Envelope{Type: msg.MessageType(), Data: msg})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.MessageType(), err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------

func EncodeInstrument(snapshot models.MInstrumentSnapshot) ([]byte, error) {
	data, err := json.Marshal(Envelope{Type: InstrumentUpdateType, Data: snapshot})
	if err != nil {
		return nil, fmt.Errorf("failed to encode update of %s: %w", snapshot.Figi, err)
	}
	return data, nil
}
