package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/crochet_shop/internal/service"
)

// GetID returns the authenticated user's id set by the auth middleware.
func GetID(c echo.Context) (uuid.UUID, error) {
	s, ok := c.Get("user_id").(string)
	if !ok || s == "" {
		return uuid.Nil, errors.New("unauthorized")
	}
	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("unauthorized")
	}
	return userID, nil
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// selfOnly resolves the caller and checks that the path parameter names them.
func selfOnly(c echo.Context, l *slog.Logger, event, param string) (uuid.UUID, error) {
	userID, err := GetID(c)
	if err != nil {
		l.Warn(event, "status", 401, "error", err)
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	target, err := pathUUID(c, param)
	if err != nil {
		l.Warn(event, "status", 400, "reason", "bad path id", "value", c.Param(param))
		return uuid.Nil, err
	}
	if target != userID {
		l.Warn(event, "status", 403, "reason", "not the caller", "target", target.String())
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return userID, nil
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail logs err and turns it into the HTTP error the client sees. Server
// errors get a generic message.
func fail(l *slog.Logger, event string, err error) error {
	var cd *service.CooldownError
	if errors.As(err, &cd) {
		l.Warn(event, "status", 409, "days_remaining", cd.DaysRemaining)
		return echo.NewHTTPError(http.StatusConflict, echo.Map{
			"message":       cd.Error(),
			"daysRemaining": cd.DaysRemaining,
		})
	}

	code := statusFor(err)
	if code >= 500 {
		l.Error(event, "status", code, "error", err)
		return echo.NewHTTPError(code, "internal server error")
	}
	l.Warn(event, "status", code, "error", err)
	return echo.NewHTTPError(code, err.Error())
}
