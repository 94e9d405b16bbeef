package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/metrics"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/service/chat"
)

// WSHandler upgrades HTTP connections and bridges them to the chat service and hub.
type WSHandler struct {
	chat    *chat.Service
	hub     *core.Hub
	metrics *metrics.Metrics
	log     *zerolog.Logger

	originPatterns  []string
	insecureOrigins bool
	maxMessageBytes int64
	ratePerSecond   float64
	burst           int
}

// NewWSHandler builds a new WebSocket handler. m may be nil.
func NewWSHandler(svc *chat.Service, hub *core.Hub, cfg config.Config, m *metrics.Metrics, logger *zerolog.Logger) stdhttp.Handler {
	h := &WSHandler{
		chat:            svc,
		hub:             hub,
		metrics:         m,
		log:             logger,
		maxMessageBytes: cfg.MaxMessageBytes,
		ratePerSecond:   cfg.WSRatePerSecond,
		burst:           cfg.WSBurst,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			h.insecureOrigins = true
			continue
		}
		// coder/websocket matches on host, not on the full origin
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			h.originPatterns = append(h.originPatterns, u.Host)
		} else {
			h.originPatterns = append(h.originPatterns, origin)
		}
	}
	return h
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.insecureOrigins,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := core.NewClient()
	if !h.hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.Unregister(client)
	h.log.Debug().Str("client_id", client.ID).Msg("ws client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.ratePerSecond, h.burst)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.countInbound("invalid", "error")
			if err := h.writeError(ctx, conn, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid message envelope"}); err != nil {
				return err
			}
			continue
		}

		if !limiter.allow() {
			h.countInbound(inbound.Type, "rate_limited")
			if err := h.writeError(ctx, conn, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		if protoErr := h.dispatch(ctx, client, inbound); protoErr != nil {
			h.countInbound(inbound.Type, "error")
			if err := h.writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}
		h.countInbound(inbound.Type, "ok")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: protoErr,
	})
}

func (h *WSHandler) countInbound(typ, result string) {
	if h.metrics != nil {
		h.metrics.WSInbound(inboundLabel(typ), result)
	}
}
