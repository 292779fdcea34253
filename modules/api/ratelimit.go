package api

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// roomCreateLimiter limits room creation per client IP. Counters live in
// redis when REDIS_ADDR is set and in process memory otherwise.
func (m *APIModule) roomCreateLimiter() fiber.Handler {
	cfg := limiter.Config{
		Max:        m.cfg.RoomCreateLimit,
		Expiration: m.cfg.RoomCreateWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "room-create:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many rooms created, try again later",
			})
		},
	}
	if m.storage != nil {
		cfg.Storage = m.storage
	}
	return limiter.New(cfg)
}

// parseRedisAddr parses "host:port" into host and port.
// Returns defaults (127.0.0.1:6379) for invalid or missing values.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	if host == "" {
		host = defaultHost
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return host, port
}
