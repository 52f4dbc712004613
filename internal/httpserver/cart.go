package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/crochet_shop/internal/logging"
	"github.com/Skotchmaster/crochet_shop/internal/service"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	userID, err := selfOnly(c, l, "get_cart_error", "userId")
	if err != nil {
		return err
	}

	cart, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return fail(l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) SaveCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.save")

	userID, err := selfOnly(c, l, "save_cart_error", "userId")
	if err != nil {
		return err
	}

	var req transport.SaveCartRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("save_cart_error", "status", 400, "error", err)
		return err
	}

	cart, err := h.Svc.SaveCart(ctx, userID, req)
	if err != nil {
		return fail(l, "save_cart_error", err)
	}

	l.Info("cart saved", "items", len(cart.Items))
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) MergeCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.merge")

	userID, err := selfOnly(c, l, "merge_cart_error", "userId")
	if err != nil {
		return err
	}

	var req transport.MergeCartRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("merge_cart_error", "status", 400, "error", err)
		return err
	}

	cart, err := h.Svc.MergeGuestCart(ctx, userID, req)
	if err != nil {
		return fail(l, "merge_cart_error", err)
	}

	l.Info("guest cart merged", "guest_items", len(req.Items), "items", len(cart.Items))
	return c.JSON(http.StatusOK, cart)
}
