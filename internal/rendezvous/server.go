// Package rendezvous is a minimal fiber-based HTTP relay a rendezvous
// service can use when neither peer can accept an inbound connection:
// each side long-polls for frames addressed to it and posts the
// frames it wants delivered to the other side. It implements the
// `http(s)://HOST/channel/<hex-id>` URL shape §6 defines, and frames
// its bodies with the 4-byte big-endian length prefix from the buffer
// package (memchannel and wschannel carry unprefixed messages).
//
// Adapted from the teacher's internal/api/server.go: same fiber.App
// scaffolding (recover/logger/cors middleware, custom error handler,
// health check, Start/Stop), with the WhatsApp session/message/webhook
// route groups replaced by a single channel-relay route group, and
// internal/api/middleware.APIKeyAuth's os.Getenv-with-default pattern
// reused for the relay's own access key.
package rendezvous

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/vertexhub/libpico/buffer"
	"github.com/vertexhub/libpico/channel"
	"github.com/vertexhub/libpico/picolog"
)

// Side names the two ends of a relayed channel; posting to one side
// delivers the frame to the other.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// pair holds the two single-direction queues for one channel id,
// mirroring memchannel.Pair's buffered-channel shape but reachable
// over HTTP instead of in-process.
type pair struct {
	aToB chan []byte
	bToA chan []byte
}

func newPair() *pair {
	return &pair{aToB: make(chan []byte, 16), bToA: make(chan []byte, 16)}
}

func (p *pair) queueFor(side Side) chan []byte {
	if side == SideA {
		return p.bToA
	}
	return p.aToB
}

func (p *pair) queueTo(side Side) chan []byte {
	if side == SideA {
		return p.aToB
	}
	return p.bToA
}

// Relay holds every open channel id's pair, created lazily on first
// touch.
type Relay struct {
	mu    sync.Mutex
	pairs map[string]*pair
}

func NewRelay() *Relay {
	return &Relay{pairs: make(map[string]*pair)}
}

func (r *Relay) pairFor(id string) *pair {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pairs[id]
	if !ok {
		p = newPair()
		r.pairs[id] = p
	}
	return p
}

const longPollTimeout = 25 * time.Second

// ServerConfig mirrors the teacher's ServerConfig shape: port plus a
// logger, with the WhatsApp SessionManager field dropped (this server
// has no session state of its own — it only relays frames).
type ServerConfig struct {
	Port   string
	Logger *zap.SugaredLogger
}

// Server is the fiber app wrapping a Relay.
type Server struct {
	app    *fiber.App
	config ServerConfig
	relay  *Relay
}

// NewServer builds a rendezvous relay server, with the teacher's
// recover/logger/cors middleware stack applied unchanged.
func NewServer(config ServerConfig) *Server {
	config.Logger = picolog.OrNop(config.Logger)

	app := fiber.New(fiber.Config{
		AppName:      "Libpico Rendezvous",
		ServerHeader: "Libpico",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Pico-Relay-Key",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	server := &Server{app: app, config: config, relay: NewRelay()}
	server.setupRoutes()
	return server
}

func relayAuth() fiber.Handler {
	key := os.Getenv("PICO_RELAY_KEY")
	if key == "" {
		key = "dev-relay-key"
	}
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}
		if c.Get("X-Pico-Relay-Key") != key {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "invalid or missing relay key",
			})
		}
		return c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthHandler)

	channelGroup := s.app.Group("/channel/:id", relayAuth())
	channelGroup.Post("/:side", s.postHandler)
	channelGroup.Get("/:side", s.getHandler)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func parseSide(raw string) (Side, error) {
	switch Side(raw) {
	case SideA, SideB:
		return Side(raw), nil
	default:
		return "", &channel.Error{Message: "rendezvous: side must be 'a' or 'b'"}
	}
}

// postHandler accepts one length-prefixed frame in the request body
// and delivers it to the other side's queue.
func (s *Server) postHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	side, err := parseSide(c.Params("side"))
	if err != nil {
		return err
	}

	payload, _, err := buffer.ReadLengthPrefixed(c.Body(), 0)
	if err != nil {
		return &channel.Error{Message: "rendezvous: " + err.Error()}
	}
	if len(payload) > channel.MaxBluetoothFrame {
		return channel.ErrFrameTooLarge
	}

	p := s.relay.pairFor(id)
	select {
	case p.queueTo(side) <- payload:
		return c.JSON(fiber.Map{"success": true})
	default:
		return &channel.Error{Message: "rendezvous: peer queue full"}
	}
}

// getHandler long-polls for the next frame addressed to side, framing
// the response body the same way the request body was framed.
func (s *Server) getHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	side, err := parseSide(c.Params("side"))
	if err != nil {
		return err
	}

	p := s.relay.pairFor(id)
	select {
	case msg := <-p.queueFor(side):
		framed := buffer.New(len(msg) + 4)
		buffer.AppendLengthPrefixed(framed, msg)
		c.Set("Content-Type", "application/octet-stream")
		return c.Send(framed.Bytes())
	case <-time.After(longPollTimeout):
		return c.Status(fiber.StatusNoContent).Send(nil)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

// Start runs the relay's HTTP listener.
func (s *Server) Start() error {
	return s.app.Listen(fmt.Sprintf(":%s", s.config.Port))
}

// Serve runs the relay on a caller-supplied listener, for tests that
// need a known, already-bound address.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}
