package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/crochet_shop/internal/logging"
	"github.com/Skotchmaster/crochet_shop/internal/service"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
	"github.com/Skotchmaster/crochet_shop/internal/util"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("create_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.PlaceOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("create_order_error", "status", 400, "error", err)
		return err
	}

	order, err := h.Svc.PlaceOrder(ctx, userID, req)
	if err != nil {
		return fail(l, "create_order_error", err)
	}

	l.Info("order created", "order_id", order.ID.String(), "total", order.Total.String())
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.my_orders")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("my_orders_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orders, err := h.Svc.ListMine(ctx, userID)
	if err != nil {
		return fail(l, "my_orders_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.delete_order")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("delete_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	orderID, err := pathUUID(c, "id")
	if err != nil {
		l.Warn("delete_order_error", "status", 400, "error", err)
		return err
	}

	if err := h.Svc.DeleteOrder(ctx, orderID, userID); err != nil {
		return fail(l, "delete_order_error", err)
	}

	l.Info("order deleted", "order_id", orderID.String())
	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHTTP) CancelLine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_line")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("cancel_line_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	orderID, err := pathUUID(c, "id")
	if err != nil {
		l.Warn("cancel_line_error", "status", 400, "error", err)
		return err
	}

	res, err := h.Svc.CancelLine(ctx, orderID, userID, c.Param("productId"))
	if err != nil {
		return fail(l, "cancel_line_error", err)
	}

	l.Info("order line cancelled", "order_id", orderID.String(), "order_deleted", res.OrderDeleted)
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	page := util.QueryInt(c.QueryParam("page"), 1)
	size := util.QueryInt(c.QueryParam("size"), util.DefaultPageSize)

	out, err := h.Svc.ListAll(ctx, c.QueryParam("status"), page, size)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	orderID, err := pathUUID(c, "id")
	if err != nil {
		l.Warn("update_status_error", "status", 400, "error", err)
		return err
	}

	var req transport.UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("update_status_error", "status", 400, "error", err)
		return err
	}

	order, err := h.Svc.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		return fail(l, "update_status_error", err)
	}

	l.Info("order status updated", "order_id", orderID.String(), "order_status", string(order.Status))
	return c.JSON(http.StatusOK, order)
}
