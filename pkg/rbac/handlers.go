package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatehouse/gatehouse/pkg/catalog"
	"github.com/gatehouse/gatehouse/pkg/httputil"
	"github.com/gatehouse/gatehouse/pkg/observability"
)

// Handlers exposes group administration and permission checks over HTTP.
// Group and grant reads go through readStore, which may point at a replica;
// everything feeding an authorization decision uses the primary through the
// service and checker.
type Handlers struct {
	service   *Service
	checker   *Checker
	readStore *Store
	logger    *observability.Logger
}

// NewHandlers creates the HTTP handler set. readStore may equal the
// service's store when no replicas are configured.
func NewHandlers(service *Service, checker *Checker, readStore *Store, logger *observability.Logger) *Handlers {
	return &Handlers{
		service:   service,
		checker:   checker,
		readStore: readStore,
		logger:    logger,
	}
}

// RegisterRoutes registers all routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rbac/groups", h.CreateGroup).Methods("POST")
	router.HandleFunc("/rbac/groups", h.ListGroups).Methods("GET")
	router.HandleFunc("/rbac/groups/{id}", h.GetGroup).Methods("GET")
	router.HandleFunc("/rbac/groups/{id}", h.UpdateGroup).Methods("PATCH")
	router.HandleFunc("/rbac/groups/{id}", h.DeleteGroup).Methods("DELETE")

	router.HandleFunc("/rbac/groups/{id}/members", h.AddMembers).Methods("POST")
	router.HandleFunc("/rbac/groups/{id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/rbac/groups/{id}/members", h.RemoveMembers).Methods("DELETE")

	router.HandleFunc("/rbac/groups/{id}/permissions", h.SetPermissions).Methods("PUT")
	router.HandleFunc("/rbac/groups/{id}/permissions", h.ListPermissions).Methods("GET")

	router.HandleFunc("/rbac/users/{id}/groups", h.ListUserGroups).Methods("GET")
	router.HandleFunc("/rbac/users/{id}/permissions", h.GetUserPermissions).Methods("GET")
	router.HandleFunc("/rbac/users/{id}/default-group", h.AssignDefaultGroup).Methods("POST")

	router.HandleFunc("/rbac/check", h.CheckPermission).Methods("POST")
	router.HandleFunc("/rbac/catalog", h.GetCatalog).Methods("GET")
}

// CreateGroup handles POST /rbac/groups
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var input CreateGroupInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	group, err := h.service.CreateGroup(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, group)
}

// ListGroups handles GET /rbac/groups
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.readStore.ListGroups(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = []Group{}
	}
	httputil.WriteSuccess(w, groups)
}

// GetGroup handles GET /rbac/groups/{id}
func (h *Handlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	group, err := h.readStore.GetGroup(r.Context(), groupID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// UpdateGroup handles PATCH /rbac/groups/{id}
func (h *Handlers) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var patch GroupPatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}

	group, err := h.service.UpdateGroup(r.Context(), groupID, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// DeleteGroup handles DELETE /rbac/groups/{id}
func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteGroup(r.Context(), groupID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type memberRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

// AddMembers handles POST /rbac/groups/{id}/members
func (h *Handlers) AddMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req memberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.AddMembers(r.Context(), groupID, req.UserIDs); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// RemoveMembers handles DELETE /rbac/groups/{id}/members
func (h *Handlers) RemoveMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req memberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.RemoveMembers(r.Context(), groupID, req.UserIDs); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListMembers handles GET /rbac/groups/{id}/members
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.readStore.GetGroup(r.Context(), groupID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	members, err := h.readStore.ListMembers(r.Context(), groupID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []int64{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"user_ids": members})
}

type permissionsRequest struct {
	Grants []GrantSpec `json:"grants"`
}

// SetPermissions handles PUT /rbac/groups/{id}/permissions
func (h *Handlers) SetPermissions(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req permissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.SetPermissions(r.Context(), groupID, req.Grants); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListPermissions handles GET /rbac/groups/{id}/permissions
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.readStore.GetGroup(r.Context(), groupID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	grants, err := h.readStore.ListGrants(r.Context(), groupID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if grants == nil {
		grants = []Grant{}
	}
	httputil.WriteSuccess(w, grants)
}

// ListUserGroups handles GET /rbac/users/{id}/groups
func (h *Handlers) ListUserGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	groups, err := h.readStore.ListUserGroups(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = []Group{}
	}
	httputil.WriteSuccess(w, groups)
}

// GetUserPermissions handles GET /rbac/users/{id}/permissions
func (h *Handlers) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	perms, err := h.checker.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if perms == nil {
		perms = []catalog.Permission{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"permissions": perms})
}

// AssignDefaultGroup handles POST /rbac/users/{id}/default-group
func (h *Handlers) AssignDefaultGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.AssignDefaultGroupToUser(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type checkRequest struct {
	UserID       int64   `json:"user_id"`
	Permission   string  `json:"permission"`
	ResourceType *string `json:"resource_type,omitempty"`
	ResourceID   *string `json:"resource_id,omitempty"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// CheckPermission handles POST /rbac/check
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.UserID == 0 {
		httputil.WriteValidationError(w, "user_id is required")
		return
	}
	if req.Permission == "" {
		httputil.WriteValidationError(w, "permission is required")
		return
	}
	if (req.ResourceType == nil) != (req.ResourceID == nil) {
		httputil.WriteValidationError(w, "resource_type and resource_id must be set together")
		return
	}

	allowed, err := h.checker.Allowed(r.Context(), Check{
		UserID:       req.UserID,
		Permission:   catalog.Permission(req.Permission),
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, checkResponse{Allowed: allowed})
}

type catalogEntry struct {
	Category    string               `json:"category"`
	Permissions []catalog.Permission `json:"permissions"`
}

// GetCatalog handles GET /rbac/catalog
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	entries := make([]catalogEntry, 0)
	for _, category := range catalog.Categories() {
		entries = append(entries, catalogEntry{
			Category:    string(category),
			Permissions: catalog.ByCategory(category),
		})
	}
	httputil.WriteSuccess(w, entries)
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ValidationError
	var unknownPermErr *UnknownPermissionError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &unknownPermErr):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, ErrSystemGroup):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrLastAdmin), errors.Is(err, ErrSlugTaken):
		httputil.WriteConflict(w, err.Error())
	case IsNotFound(err):
		httputil.WriteNotFoundError(w, err.Error())
	default:
		logger := h.logger
		if requestID := observability.GetRequestID(r.Context()); requestID != "" {
			logger = logger.WithField("request_id", requestID)
		}
		logger.WithError(err).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}
