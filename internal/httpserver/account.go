package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/crochet_shop/internal/logging"
	"github.com/Skotchmaster/crochet_shop/internal/service"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

type AccountHTTP struct {
	Svc *service.AccountService
}

func (h *AccountHTTP) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.get_user")

	userID, err := selfOnly(c, l, "get_user_error", "id")
	if err != nil {
		return err
	}

	u, err := h.Svc.GetUser(ctx, userID)
	if err != nil {
		return fail(l, "get_user_error", err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AccountHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.update_user")

	userID, err := selfOnly(c, l, "update_user_error", "id")
	if err != nil {
		return err
	}

	var req transport.UpdateAccountRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("update_user_error", "status", 400, "error", err)
		return err
	}

	u, err := h.Svc.UpdateAccount(ctx, userID, req)
	if err != nil {
		return fail(l, "update_user_error", err)
	}

	l.Info("account updated")
	return c.JSON(http.StatusOK, u)
}
