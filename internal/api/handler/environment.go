package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/flotilla/internal/api/request"
	"github.com/edvin/flotilla/internal/api/response"
	"github.com/edvin/flotilla/internal/core"
	"github.com/edvin/flotilla/internal/model"
)

type Environment struct {
	svc *core.EnvironmentService
	// registrationEnabled gates the create endpoint; deployments can run the
	// API read-only.
	registrationEnabled bool
}

func NewEnvironment(svc *core.EnvironmentService, registrationEnabled bool) *Environment {
	return &Environment{svc: svc, registrationEnabled: registrationEnabled}
}

func (h *Environment) Create(w http.ResponseWriter, r *http.Request) {
	if !h.registrationEnabled {
		response.WriteError(w, http.StatusServiceUnavailable, "environment registration is disabled")
		return
	}

	req, err := parseRegistration(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	env, err := h.svc.Create(r.Context(), req)
	if err != nil {
		response.WriteError(w, statusForError(err), err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, env)
}

func (h *Environment) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	envs, hasMore, err := h.svc.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(envs) > 0 {
		nextCursor = strconv.FormatInt(envs[len(envs)-1].ID, 10)
	}
	response.WritePaginated(w, http.StatusOK, envs, nextCursor, hasMore)
}

func (h *Environment) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	env, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, env)
}

func (h *Environment) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseRegistration decodes and validates the multipart registration request
// into a typed intent. It has no side effects; every rejection names the
// offending field.
func parseRegistration(r *http.Request) (*core.RegistrationRequest, error) {
	req := &core.RegistrationRequest{}

	name, err := request.MultipartValue(r, "Name", false)
	if err != nil {
		return nil, &core.ValidationError{Field: "Name", Reason: "environment name is required"}
	}
	req.Name = name

	endpointType, err := request.MultipartNumericValue(r, "EndpointType", false)
	if err != nil || endpointType < int(model.EnvironmentTypeDocker) || endpointType > int(model.EnvironmentTypeEdgeAgent) {
		return nil, &core.ValidationError{
			Field:  "EndpointType",
			Reason: "must be one of: 1 (Docker), 2 (Docker via agent), 3 (Azure), 4 (Edge agent)",
		}
	}
	req.Type = model.EnvironmentType(endpointType)

	groupID, _ := request.MultipartNumericValue(r, "GroupID", true)
	if groupID == 0 {
		groupID = model.UnassignedGroupID
	}
	req.GroupID = int64(groupID)

	var tags []string
	if err := request.MultipartJSONValue(r, "Tags", true, &tags); err != nil {
		return nil, &core.ValidationError{Field: "Tags", Reason: "must be a JSON array of strings"}
	}
	if tags == nil {
		tags = []string{}
	}
	req.Tags = tags

	req.TLS = request.MultipartBoolValue(r, "TLS")
	if req.TLS {
		req.TLSSkipVerify = request.MultipartBoolValue(r, "TLSSkipVerify")
		req.TLSSkipClientVerify = request.MultipartBoolValue(r, "TLSSkipClientVerify")

		if !req.TLSSkipVerify {
			caCert, err := request.MultipartFile(r, "TLSCACertFile")
			if err != nil {
				return nil, &core.ValidationError{Field: "TLSCACertFile", Reason: "CA certificate file is required when server verification is on"}
			}
			req.TLSCACertFile = caCert
		}

		if !req.TLSSkipClientVerify {
			cert, err := request.MultipartFile(r, "TLSCertFile")
			if err != nil {
				return nil, &core.ValidationError{Field: "TLSCertFile", Reason: "certificate file is required when client verification is on"}
			}
			req.TLSCertFile = cert

			key, err := request.MultipartFile(r, "TLSKeyFile")
			if err != nil {
				return nil, &core.ValidationError{Field: "TLSKeyFile", Reason: "key file is required when client verification is on"}
			}
			req.TLSKeyFile = key
		}
	}

	if req.Type == model.EnvironmentTypeAzure {
		applicationID, err := request.MultipartValue(r, "AzureApplicationID", false)
		if err != nil {
			return nil, &core.ValidationError{Field: "AzureApplicationID", Reason: "required for Azure environments"}
		}
		req.AzureApplicationID = applicationID

		tenantID, err := request.MultipartValue(r, "AzureTenantID", false)
		if err != nil {
			return nil, &core.ValidationError{Field: "AzureTenantID", Reason: "required for Azure environments"}
		}
		req.AzureTenantID = tenantID

		authenticationKey, err := request.MultipartValue(r, "AzureAuthenticationKey", false)
		if err != nil {
			return nil, &core.ValidationError{Field: "AzureAuthenticationKey", Reason: "required for Azure environments"}
		}
		req.AzureAuthenticationKey = authenticationKey
	} else {
		// Empty URL selects the local default engine for plain Docker
		// registrations.
		url, _ := request.MultipartValue(r, "URL", true)
		req.URL = url

		publicURL, _ := request.MultipartValue(r, "PublicURL", true)
		req.PublicURL = publicURL

		if req.URL == "" && (req.Type == model.EnvironmentTypeEdgeAgent || req.TLS) {
			return nil, &core.ValidationError{Field: "URL", Reason: "required for this environment type"}
		}
	}

	return req, nil
}

// statusForError maps the registration error taxonomy onto HTTP statuses:
// validation and credential problems are the client's, probe and persistence
// failures on hard-fail paths are the server's.
func statusForError(err error) int {
	var validationErr *core.ValidationError
	var credentialErr *core.CredentialError
	if errors.As(err, &validationErr) || errors.As(err, &credentialErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
