package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/autodoc-ai/stepsync/internal/pipeline"
)

// Data keeps data required for service work
type Data struct {
	Port   int
	Hub    *ProgressHub
	Status *pipeline.StatusStore
	Ctx    context.Context
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting stepsync service at %d", data.Port)
	if err := validate(data); err != nil {
		return nil, err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			goapp.Log.Error().Err(err).Msg("can't start web server")
		}
		goapp.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("stepsync", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/live", live(data))
	e.GET("/guide/:guide_id/status", guideStatus(data))
	e.GET("/ws/progress/:guide_id", progressWS(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func guideStatus(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		id := c.Param("guide_id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no guide_id")
		}
		st, errMsg, err := data.Status.GetStatus(c.Request().Context(), id)
		if err != nil {
			goapp.Log.Error().Err(err).Str("guide", id).Msg("can't get status")
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, statusResponse{GuideID: id, Status: st, Error: errMsg})
	}
}

type statusResponse struct {
	GuideID string `json:"guide_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func validate(data *Data) error {
	if data.Hub == nil {
		return fmt.Errorf("no Hub")
	}
	if data.Status == nil {
		return fmt.Errorf("no Status")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

// progressWS streams api.Progress events for one guide until the render
// reaches 100%, the client disconnects, or the service shuts down.
func progressWS(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		id := c.Param("guide_id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no guide_id")
		}
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		events, unsubscribe := data.Hub.Subscribe(id)
		defer unsubscribe()
		goapp.Log.Info().Str("guide", id).Msg("progress subscriber connected")

		closed := watchClose(ws)
		for {
			select {
			case <-data.Ctx.Done():
				return nil
			case <-closed:
				goapp.Log.Info().Str("guide", id).Msg("progress subscriber left")
				return nil
			case p, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(p); err != nil {
					goapp.Log.Error().Err(err).Msg("write error")
					return nil
				}
				if p.Stage == "complete" {
					return nil
				}
			}
		}
	}
}

func watchClose(ws *websocket.Conn) <-chan struct{} {
	res := make(chan struct{})
	go func() {
		defer close(res)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return res
}
