package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/crochet_shop/internal/shipping"
)

func ShippingRegions(c echo.Context) error {
	return c.JSON(http.StatusOK, shipping.Regions())
}
