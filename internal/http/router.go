package http

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/internal/protocol"
	"github.com/saker-ai/avs-device/internal/session/fsm"
	"github.com/saker-ai/avs-device/internal/ws"
	"github.com/saker-ai/avs-device/pkg/avs"
	"github.com/saker-ai/avs-device/webassets"
)

type recognizeRequest struct {
	Utterance  string `json:"utterance" binding:"required"`
	NewSession bool   `json:"new_session"`
}

type userEventRequest struct {
	Event json.RawMessage `json:"event" binding:"required"`
}

type localeRequest struct {
	Locale string `json:"locale" binding:"required"`
}

// turnStater is implemented by devices that expose their turn state machine.
type turnStater interface {
	TurnState() fsm.State
}

type api struct {
	resolve protocol.DeviceResolver
	logger  *zap.Logger
}

// NewRouter executes the newRouter function.
func NewRouter(resolve protocol.DeviceResolver, wsHandler *ws.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/simulator-ws", func(c *gin.Context) {
		wsHandler.Handle(c.Writer, c.Request)
	})

	a := &api{resolve: resolve, logger: logger}
	v1 := router.Group("/api/v1")
	v1.Use(a.device())
	v1.GET("/state", a.state)
	v1.POST("/recognize", a.recognize)
	v1.POST("/user-event", a.userEvent)
	v1.POST("/session", a.newSession)
	v1.PUT("/locale", a.locale)

	mountEmbeddedFrontend(router, logger)
	return router
}

// device resolves the simulated device from the bearer token and the region
// query parameter before any API handler runs.
func (a *api) device() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		device, err := a.resolve(token, c.Query("region"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set("device", device)
		c.Next()
	}
}

func deviceFrom(c *gin.Context) protocol.Device {
	return c.MustGet("device").(protocol.Device)
}

func (a *api) state(c *gin.Context) {
	device := deviceFrom(c)
	body := gin.H{"state": device.State(), "locale": device.Locale()}
	if ts, ok := device.(turnStater); ok {
		body["turnState"] = ts.TurnState()
	}
	c.JSON(http.StatusOK, body)
}

func (a *api) recognize(c *gin.Context) {
	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := deviceFrom(c).SendAudioEvent(c.Request.Context(), req.Utterance, req.NewSession)
	a.writeTurn(c, result, err)
}

func (a *api) userEvent(c *gin.Context) {
	var req userEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := deviceFrom(c).SendUserEvent(c.Request.Context(), req.Event)
	a.writeTurn(c, result, err)
}

func (a *api) newSession(c *gin.Context) {
	if err := deviceFrom(c).SendNewSessionEvent(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) locale(c *gin.Context) {
	var req localeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	device := deviceFrom(c)
	if err := device.SendLocaleSettingEvent(c.Request.Context(), req.Locale); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locale": device.Locale()})
}

// writeTurn replies with the turn result. A partial result that lacks
// debugging info is still a 200 with the error attached.
func (a *api) writeTurn(c *gin.Context, result *avs.TurnResult, err error) {
	if err != nil && result == nil {
		abortWithError(c, err)
		return
	}
	body := gin.H{"result": result}
	if err != nil {
		a.logger.Warn("turn returned partial result", zap.Error(err))
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, avs.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, avs.ErrSessionClosed):
		return http.StatusServiceUnavailable
	}
	if e, ok := avs.AsError(err); ok {
		switch e.Kind {
		case avs.KindAuth:
			return http.StatusUnauthorized
		case avs.KindTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

func mountEmbeddedFrontend(router *gin.Engine, logger *zap.Logger) bool {
	embeddedRoot, err := webassets.Subdir("simulator")
	if err != nil {
		logger.Warn("failed to load embedded simulator page", zap.Error(err))
		return false
	}
	indexHTML, err := fs.ReadFile(embeddedRoot, "index.html")
	if err != nil {
		logger.Warn("missing embedded index.html", zap.Error(err))
		return false
	}
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	return true
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", redactQuery(c.Request.URL)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// redactQuery hides the access token carried by websocket URLs.
func redactQuery(u *url.URL) string {
	q := u.Query()
	if !q.Has("token") {
		return u.RawQuery
	}
	q.Set("token", "REDACTED")
	return q.Encode()
}
