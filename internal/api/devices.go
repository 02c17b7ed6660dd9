package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nadavnv/smart-home-core/internal/device"
)

// WebSocket broadcast channels for device lifecycle events.
const (
	channelDeviceCreated = "device.created"
	channelDeviceState   = "device.state_changed"
	channelDeviceDeleted = "device.deleted"
)

// createDeviceRequest is the body for POST /api/devices.
type createDeviceRequest struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Room       string            `json:"room"`
	Type       device.Type       `json:"type"`
	Status     device.Status     `json:"status"`
	Parameters device.Parameters `json:"parameters"`
}

// updateDeviceRequest is the body for PUT /api/devices/{id}.
// All fields are optional; absent fields keep their stored values.
type updateDeviceRequest struct {
	Status     *device.Status    `json:"status"`
	Parameters device.Parameters `json:"parameters"`

	// Sequence is the caller's belief of the device's version. A stale
	// value makes the update a no-op returning the stored state.
	Sequence int64 `json:"sequence"`
}

// handleListIDs returns the identifiers of every registered device.
func (s *Server) handleListIDs(w http.ResponseWriter, _ *http.Request) {
	ids := s.reconciler.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// handleListDevices returns the full state of every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.reconciler.GetAll()
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns one device's state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.reconciler.Get(id)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new device from a complete descriptor.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.reconciler.Create(r.Context(), &device.Device{
		ID:         req.ID,
		Name:       req.Name,
		Room:       req.Room,
		Type:       req.Type,
		Status:     req.Status,
		Parameters: req.Parameters,
	})
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	s.announceCreated(dev)
	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice applies a partial mutation to a device.
//
// A stale sequence is not an error: the mutation is discarded and the
// stored state is returned, matching last-applied-wins semantics on the
// message bus.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.reconciler.Update(r.Context(), id, req.Parameters, req.Status, req.Sequence)
	if errors.Is(err, device.ErrStaleEvent) {
		current, getErr := s.reconciler.Get(id)
		if getErr != nil {
			writeDeviceError(w, getErr)
			return
		}
		writeJSON(w, http.StatusOK, current)
		return
	}
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	s.announceUpdated(dev)
	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.reconciler.Delete(r.Context(), id); err != nil {
		writeDeviceError(w, err)
		return
	}

	s.announceDeleted(id)
	w.WriteHeader(http.StatusNoContent)
}

// announceCreated fans an applied creation out to the bus and WebSocket
// clients. Both paths are best-effort.
func (s *Server) announceCreated(dev *device.Device) {
	if s.publisher != nil {
		if err := s.publisher.DeviceCreated(dev); err != nil {
			s.logger.Warn("create event publish failed", "device_id", dev.ID, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(channelDeviceCreated, dev)
	}
}

func (s *Server) announceUpdated(dev *device.Device) {
	if s.publisher != nil {
		if err := s.publisher.DeviceUpdated(dev); err != nil {
			s.logger.Warn("update event publish failed", "device_id", dev.ID, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(channelDeviceState, dev)
	}
}

func (s *Server) announceDeleted(deviceID string) {
	if s.publisher != nil {
		if err := s.publisher.DeviceDeleted(deviceID); err != nil {
			s.logger.Warn("delete event publish failed", "device_id", deviceID, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(channelDeviceDeleted, map[string]string{"id": deviceID})
	}
}
