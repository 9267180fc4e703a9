package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/event-scheduler/internal/application"
)

var errInvalidUserID = errors.New("User id is required")

type userService interface {
	GetProfile(ctx context.Context, principal application.Principal) (application.User, error)
	ListOtherUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
	UpdateUserRole(ctx context.Context, params application.UpdateUserRoleParams) (application.User, error)
}

type invitationService interface {
	Invite(ctx context.Context, params application.InviteParams) (application.InviteResult, error)
	Register(ctx context.Context, params application.RegisterParams) (application.User, error)
}

type UserHandler struct {
	users       userService
	invitations invitationService
	responder   responder
	logger      *slog.Logger
}

func NewUserHandler(users userService, invitations invitationService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{users: users, invitations: invitations, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.users == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	user, err := h.users.GetProfile(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Me", "principal_id", principal.UserID).ErrorContext(r.Context(), "profile lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.users == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	users, err := h.users.ListOtherUsers(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).ErrorContext(r.Context(), "user listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTOs(users))
}

func (h *UserHandler) Invite(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.invitations == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Invite", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode invite request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Invite", "principal_id", principal.UserID, "role", req.Role)

	result, err := h.invitations.Invite(r.Context(), application.InviteParams{
		Principal: principal,
		Email:     req.Email,
		Role:      req.Role,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "invitation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "invitation issued")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toUserDTO(result.User))
}

func (h *UserHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.users == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := strings.TrimSpace(r.PathValue("id"))
	if userID == "" {
		h.log(r.Context(), "UpdatePermissions", "error_kind", "bad_request").WarnContext(r.Context(), "missing user id for role update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "UpdatePermissions", "principal_id", principal.UserID, "user_id", userID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode role update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdatePermissions", "principal_id", principal.UserID, "user_id", userID, "role", req.Role)

	user, err := h.users.UpdateUserRole(r.Context(), application.UpdateUserRoleParams{
		Principal: principal,
		UserID:    userID,
		Role:      req.Role,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "role update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "role updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

// Register creates a self-registered account, or activates an invited one
// when the body carries a token.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, "Register", false)
}

// RegisterFromInvite is Register with a mandatory invitation token.
func (h *UserHandler) RegisterFromInvite(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, "RegisterFromInvite", true)
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request, operation string, requireToken bool) {
	if h == nil || h.invitations == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode registration", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	token := strings.TrimSpace(req.Token)
	logger := h.log(r.Context(), operation, "invited", token != "")

	if requireToken && token == "" {
		logger.WarnContext(r.Context(), "registration without invitation token")
		h.responder.handleServiceError(r.Context(), w, application.ErrInvalidClaim)
		return
	}

	user, err := h.invitations.Register(r.Context(), application.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
		Token:    token,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user registered")
	if token != "" {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
		return
	}
	dto := toUserDTO(user)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, registrationResponse{
		Message: "Registration successful",
		User:    &dto,
	})
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

type registrationResponse struct {
	Message string   `json:"message"`
	User    *userDTO `json:"user,omitempty"`
}

type userDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	Mobile      string          `json:"mobile,omitempty"`
	Role        string          `json:"role,omitempty"`
	Permissions map[string]bool `json:"permissions"`
	Activated   bool            `json:"activated"`
}

func toUserDTO(user application.User) userDTO {
	permissions := make(map[string]bool)
	for _, key := range user.Permissions() {
		permissions[key] = true
	}
	return userDTO{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Mobile:      user.Mobile,
		Role:        user.RoleName(),
		Permissions: permissions,
		Activated:   user.Activated(),
	}
}

func toUserDTOs(users []application.User) []userDTO {
	result := make([]userDTO, 0, len(users))
	for _, user := range users {
		result = append(result, toUserDTO(user))
	}
	return result
}
