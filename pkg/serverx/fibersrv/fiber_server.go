package fibersrv

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/marcodd23/go-micro-dbfunc/pkg/configx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/serverx"
)

// FiberServer - Fiber server.
type FiberServer struct {
	Server *fiber.App
	config configx.Config
}

// NewFiberServer - Fiber server constructor.
func NewFiberServer(config configx.Config) serverx.Server[*fiber.App] {
	app := fiber.New(buildFiberConfig(config))
	app.Use(recover.New())

	return &FiberServer{app, config}
}

func buildFiberConfig(config configx.Config) fiber.Config {
	fiberConfig := fiber.Config{
		AppName:       config.GetServiceName(),
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
		ErrorHandler:  ErrorHandler,
	}

	if serverConfig := config.GetServerConfig(); serverConfig != nil {
		if serverConfig.Concurrency > 0 {
			fiberConfig.Concurrency = serverConfig.Concurrency
		}

		fiberConfig.DisableStartupMessage = serverConfig.DisableStartupMessage
	}

	return fiberConfig
}

// ErrorHandler - render errors as {"error": "..."} with the fiber error status, 500 otherwise.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	if code >= fiber.StatusInternalServerError {
		logx.GetLogger().LogError(c.UserContext(), fmt.Sprintf("%s %s failed", c.Method(), c.Path()), err)
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// GetServer - return the fiber server.
func (srv *FiberServer) GetServer() *fiber.App {
	return srv.Server
}

// RunSync - Run the server sync.
func (srv *FiberServer) RunSync() {
	if srv.Server != nil {
		runServer(srv)
	}
}

// RunAsync - Run the server async.
func (srv *FiberServer) RunAsync() {
	if srv.Server != nil {
		go func() {
			runServer(srv)
		}()
	}
}

// Setup - Receive a callback function setupFunc that let to configure the server.
func (srv *FiberServer) Setup(ctx context.Context, setupFunc func(fiber *fiber.App)) {
	if srv.Server != nil {
		setupFunc(srv.Server)
	}
}

// Shutdown - shutdown the server.
func (srv *FiberServer) Shutdown(ctx context.Context) {
	if srv.Server != nil {
		if err := srv.Server.ShutdownWithContext(ctx); err != nil {
			logx.GetLogger().LogError(ctx, "Error shutting down the Server", err)
		} else {
			logx.GetLogger().LogInfo(ctx, "Server shut down.. ")
		}
	}
}

func runServer(srv *FiberServer) {
	port := "8080"
	if serverConfig := srv.config.GetServerConfig(); serverConfig != nil && serverConfig.Port != "" {
		port = serverConfig.Port
	}

	if err := srv.Server.Listen(fmt.Sprintf(":%s", port)); err != nil {
		logx.GetLogger().LogPanic(context.TODO(), "Oops... server is not running! error:", err)
	}
}
