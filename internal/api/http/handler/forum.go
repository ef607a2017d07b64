package handler

import (
	"net/http"

	"github.com/dtroode/mindhealer-server/internal/api/http/response"
	"github.com/dtroode/mindhealer-server/internal/forum"
)

type Forum struct {
	coordinator *forum.Coordinator
}

func NewForum(coordinator *forum.Coordinator) *Forum {
	return &Forum{coordinator: coordinator}
}

type roomsResponse struct {
	Rooms        map[string]int `json:"rooms"`
	Participants int            `json:"participants"`
}

// Rooms reports the member count of every active room.
func (h *Forum) Rooms(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, roomsResponse{
		Rooms:        h.coordinator.Stats(),
		Participants: h.coordinator.Participants(),
	})
}
