package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/service"
)

const configSuffix = "_config"

type UserHandler struct {
	s service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{s: service}
}

func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	record, err := h.s.GetUserInfo(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(record)
}

// UpdateUserInfo applies a partial update. "<platform>_config" keys carry
// either an object of credential fields or "" to disconnect.
func (h *UserHandler) UpdateUserInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	patch, err := parseUserPatch(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	record, err := h.s.UpdateUserInfo(c.Context(), userID, patch)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(record)
}

func parseUserPatch(body []byte) (service.UserPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return service.UserPatch{}, apperr.Validation("request body must be a JSON object")
	}

	patch := service.UserPatch{Configs: map[string]map[string]string{}}
	for key, value := range raw {
		switch {
		case key == "email":
			if err := json.Unmarshal(value, &patch.Email); err != nil {
				return patch, apperr.Validation("email must be a string", key)
			}
		case key == "name":
			if err := json.Unmarshal(value, &patch.Name); err != nil {
				return patch, apperr.Validation("name must be a string", key)
			}
		case key == "image":
			if err := json.Unmarshal(value, &patch.Image); err != nil {
				return patch, apperr.Validation("image must be a string", key)
			}
		case strings.HasSuffix(key, configSuffix):
			fields, err := parseConfigValue(value)
			if err != nil {
				return patch, apperr.Validation(key+" must be an object of strings or an empty string", key)
			}
			patch.Configs[strings.TrimSuffix(key, configSuffix)] = fields
		}
	}
	return patch, nil
}

// parseConfigValue returns nil for "" (disconnect) and the field map otherwise.
func parseConfigValue(value json.RawMessage) (map[string]string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		if s != "" {
			return nil, apperr.Validation("unexpected string")
		}
		return nil, nil
	}

	var generic map[string]any
	if err := json.Unmarshal(value, &generic); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(generic))
	for k, v := range generic {
		switch tv := v.(type) {
		case string:
			fields[k] = tv
		case nil:
			fields[k] = ""
		default:
			// credential fields are strings; anything else is ignored
			continue
		}
	}
	return fields, nil
}
