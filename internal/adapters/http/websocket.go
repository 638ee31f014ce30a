package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/mapsession"
	"github.com/samirrijal/groupmap/internal/core/mapview"
	"github.com/samirrijal/groupmap/internal/core/viewport"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
)

const (
	localInvType = "map_inv_type"
	localWidth   = "map_width"
	localHeight  = "map_height"
	localIP      = "map_client_ip"
)

// MapSessionUpgrade validates the session parameters and stashes them for
// the websocket handler: ?type=<inv type>&width=<px>&height=<px>.
func MapSessionUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		invType := c.Query("type")
		if invType == "" {
			return errBadRequest(c, "type is required")
		}
		c.Locals(localInvType, invType)
		c.Locals(localWidth, c.QueryInt("width", 0))
		c.Locals(localHeight, c.QueryInt("height", 0))
		c.Locals(localIP, c.IP())
		return c.Next()
	}
}

// wsSender writes session messages to the socket. Writes are serialized
// with the keep-alive pings.
type wsSender struct {
	mu   *sync.Mutex
	conn *websocket.Conn
}

func (s wsSender) Send(msg mapsession.Outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// MapSessionHandler runs one interactive map per connection. The client
// sends mapsession.Inbound messages and receives mapsession.Outbound ones.
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		invType, _ := c.Locals(localInvType).(string)
		width, _ := c.Locals(localWidth).(int)
		height, _ := c.Locals(localHeight).(int)
		ip, _ := c.Locals(localIP).(string)

		log := slog.Default().With("remote", c.RemoteAddr().String(), "inv_type", invType)
		log.Info("map session opened")

		metrics.ActiveMapSessions.Inc()
		defer metrics.ActiveMapSessions.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		out := wsSender{mu: &mu, conn: c}

		recs, err := deps.Involvements.Items(ctx, invType)
		if err != nil {
			log.Error("load map items", "error", err)
			data, _ := json.Marshal(map[string]string{"message": "could not load items"})
			_ = out.Send(mapsession.Outbound{Type: mapsession.OutError, Data: data})
			return
		}

		cfg := deps.Maps.Config()
		session := mapsession.New(mapsession.Config{
			InvType:  invType,
			Records:  recs,
			Viewport: deps.Maps.NewViewport(width, height),
			Zoomer: mapview.NewZoomer(cfg.ZoomStep, mapview.WithStepObserver(func(int) {
				metrics.ZoomSteps.Inc()
			})),
			Server:    deps.Geolocate.ForClient(net.ParseIP(ip)),
			Nearby:    deps.Involvements,
			Broadcast: deps.Broadcast,
			FarAwayKm: deps.FarAwayKm,
			Place: func(recs []domain.ItemRecord, invType string, vp *viewport.Viewport, opts ...mapview.ViewOption) *mapview.View {
				return deps.Maps.Place(recs, invType, vp, opts...).View
			},
			Logger: log,
		}, out)
		go session.Run(ctx)

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var msg mapsession.Inbound
			if err := json.Unmarshal(raw, &msg); err != nil {
				data, _ := json.Marshal(map[string]string{"message": "invalid JSON"})
				_ = out.Send(mapsession.Outbound{Type: mapsession.OutError, Data: data})
				continue
			}
			session.Deliver(ctx, msg)
		}

		log.Info("map session closed")
	}
}
