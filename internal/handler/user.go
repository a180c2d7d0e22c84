package handler

import (
	"net/http"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/model"
	"github.com/bugtracker/internal/repository"
)

// UserHandler отдаёт список пользователей для выбора исполнителя задачи.
type UserHandler struct {
	users *repository.UserRepository
}

func NewUserHandler(users *repository.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

type userListResponse struct {
	Users []model.UserPublic `json:"users"`
}

// List возвращает всех пользователей, отсортированных по email.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context())
	if err != nil {
		logger.Errorf("UserHandler.List: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	public := make([]model.UserPublic, 0, len(users))
	for _, u := range users {
		public = append(public, u.ToPublic())
	}
	writeJSON(w, http.StatusOK, userListResponse{Users: public})
}
