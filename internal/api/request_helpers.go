package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/api/shared"
	"github.com/supermodelai/supermodel-api/internal/domain"
)

// getOwnerIDFromContext extracts the authenticated owner's UUID from the
// request context. The owner ID is placed in the context by the
// authentication middleware.
func getOwnerIDFromContext(r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := r.Context().Value(shared.OwnerIDContextKey).(uuid.UUID)
	if !ok || ownerID == uuid.Nil {
		return uuid.Nil, false
	}
	return ownerID, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}

	return id, nil
}

// requireOwnerAndPathUUID extracts both the owner ID from context and a
// UUID from the path, writing an error response if either fails.
func requireOwnerAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := getOwnerIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "Owner ID not found or invalid")
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return ownerID, pathID, true
}
