package machineid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/denisbrodbeck/machineid"

	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// appID scopes the hashed id so it cannot be correlated with other applications
const appID = "notifytrigger"

type hardwareMachineID struct {
	length int
}

// NewHardwareMachineID returns hashed machine ids truncated to length hex chars (0 keeps all)
func NewHardwareMachineID(length int) outbound.MachineIDService {
	return &hardwareMachineID{length: length}
}

func (h *hardwareMachineID) GetMachineID() (string, error) {
	rawID, err := machineid.ID()
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256([]byte(appID + ":" + rawID))
	id := hex.EncodeToString(hash[:])
	if h.length > 0 && h.length < len(id) {
		id = id[:h.length]
	}
	return id, nil
}
