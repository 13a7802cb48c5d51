package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	cartsvc "nexus-storefront/internal/service/cart"
)

type addItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
}

func (h *handlers) getCart(c *gin.Context) {
	snap, err := h.deps.Carts.Get(c.Request.Context(), sessionKey(c), currentIdentity(c).UID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		badRequest(c, "productId is required")
		return
	}
	snap, err := h.deps.Carts.AddItem(c.Request.Context(), sessionKey(c), currentIdentity(c).UID, req.ProductID, req.Size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) decreaseCartItem(c *gin.Context) {
	snap, err := h.deps.Carts.Decrease(c.Request.Context(), sessionKey(c), currentIdentity(c).UID, c.Param("lineId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	snap, err := h.deps.Carts.Remove(c.Request.Context(), sessionKey(c), currentIdentity(c).UID, c.Param("lineId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) clearCart(c *gin.Context) {
	snap, err := h.deps.Carts.Clear(c.Request.Context(), sessionKey(c), currentIdentity(c).UID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// streamCart pushes the cart snapshot over a websocket whenever the mirror
// changes, including changes made from another session of the same user.
// Only the newest pending snapshot is kept for slow readers.
func (h *handlers) streamCart(c *gin.Context) {
	uid := currentIdentity(c).UID
	key := sessionKey(c)
	ctx := c.Request.Context()

	initial, err := h.deps.Carts.Get(ctx, key, uid)
	if err != nil {
		h.writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("cart stream upgrade", zap.String("uid", uid), zap.Error(err))
		return
	}
	defer conn.Close()

	updates := make(chan cartsvc.Snapshot, 1)
	push := func(s cartsvc.Snapshot) {
		for {
			select {
			case updates <- s:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	}
	stop, err := h.deps.Carts.Watch(ctx, key, uid, push)
	if err != nil {
		h.logger.Warn("cart stream watch", zap.String("uid", uid), zap.Error(err))
		return
	}
	defer stop()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(v) == nil
	}
	if !write(initial) {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case snap := <-updates:
			if !write(snap) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
