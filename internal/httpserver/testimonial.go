package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/logging"
	"github.com/Skotchmaster/crochet_shop/internal/service"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
	"github.com/Skotchmaster/crochet_shop/internal/util"
)

const streamKeepAlive = 25 * time.Second

type TestimonialHTTP struct {
	Svc *service.TestimonialService
	Hub *events.Hub
}

func (h *TestimonialHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "testimonial.list")

	page := util.QueryInt(c.QueryParam("page"), 1)
	size := util.QueryInt(c.QueryParam("size"), util.DefaultPageSize)

	out, err := h.Svc.List(ctx, page, size)
	if err != nil {
		return fail(l, "list_testimonials_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TestimonialHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "testimonial.create")

	var req transport.TestimonialRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("create_testimonial_error", "status", 400, "error", err)
		return err
	}

	t, err := h.Svc.Create(ctx, req)
	if err != nil {
		return fail(l, "create_testimonial_error", err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TestimonialHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "testimonial.delete")

	id, err := pathUUID(c, "id")
	if err != nil {
		l.Warn("delete_testimonial_error", "status", 400, "error", err)
		return err
	}

	if err := h.Svc.Delete(ctx, id); err != nil {
		return fail(l, "delete_testimonial_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stream pushes testimonial changes to the client as server-sent events
// until the client goes away or the hub shuts down.
func (h *TestimonialHTTP) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "testimonial.stream")

	// The server-wide write timeout would otherwise cut the stream off.
	if err := http.NewResponseController(c.Response()).SetWriteDeadline(time.Time{}); err != nil {
		l.Debug("stream_deadline_error", "error", err)
	}

	sub, release := h.Hub.Subscribe()
	defer release()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(ev.Type, "testimonial_") {
				continue
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				l.Warn("stream_encode_error", "type", ev.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
