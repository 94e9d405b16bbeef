package http

import (
	"context"
	"encoding/json"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/service/chat"
)

var knownInbound = map[string]struct{}{
	proto.InboundTypeJoin:                  {},
	proto.InboundTypeSendMessage:           {},
	proto.InboundTypeMarkMessagesRead:      {},
	proto.InboundTypeMarkMessageRead:       {},
	proto.InboundTypeDeleteAllUserMessages: {},
	proto.InboundTypeDeleteAllMessages:     {},
	proto.InboundTypeEditMessage:           {},
}

// inboundLabel keeps metric labels bounded to known frame types.
func inboundLabel(typ string) string {
	if _, ok := knownInbound[typ]; ok {
		return typ
	}
	return "unknown"
}

func decodeData[T any](inbound proto.Inbound) (T, *proto.Error) {
	var data T
	if len(inbound.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		return data, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid " + inbound.Type + " payload"}
	}
	return data, nil
}

func protoError(err error) *proto.Error {
	ce := core.ErrorFrom(err)
	return &proto.Error{Code: ce.Code, Msg: ce.Message}
}

// dispatch runs one inbound frame. Broadcasts go through the hub; results for
// the issuing connection are queued on its own event channel.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, inbound proto.Inbound) *proto.Error {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		join, perr := decodeData[proto.JoinData](inbound)
		if perr != nil {
			return perr
		}
		rooms := h.hub.Join(client, join.UserID, join.IsAdmin)
		room := join.UserID
		if room == "" {
			room = core.AdminRoom
		}
		if rooms == nil {
			rooms = []string{}
		}
		h.hub.Send(client, &core.Event{Kind: core.EventJoined, Payload: proto.JoinedEvent{
			Status: "success",
			Room:   room,
			Rooms:  rooms,
		}})
		h.log.Debug().Str("client_id", client.ID).Str("user_id", join.UserID).Bool("admin", join.IsAdmin).Msg("ws client joined")
		return nil

	case proto.InboundTypeSendMessage:
		msg, perr := decodeData[proto.SendMessageData](inbound)
		if perr != nil {
			return perr
		}
		role := chat.RoleUser
		if msg.IsAdmin || msg.AdminID != "" {
			role = chat.RoleAdmin
		}
		if _, err := h.chat.Ingest(ctx, chat.IngestRequest{
			UserID:  msg.UserID,
			Role:    role,
			Content: msg.Text,
			AdminID: msg.AdminID,
		}); err != nil {
			return h.fail(client, inbound.Type, err)
		}
		return nil

	case proto.InboundTypeMarkMessagesRead:
		data, perr := decodeData[proto.MarkMessagesReadData](inbound)
		if perr != nil {
			return perr
		}
		if _, err := h.chat.MarkUserRead(ctx, data.UserID, data.AdminID); err != nil {
			return h.fail(client, inbound.Type, err)
		}
		return nil

	case proto.InboundTypeMarkMessageRead:
		data, perr := decodeData[proto.MarkMessageReadData](inbound)
		if perr != nil {
			return perr
		}
		if _, _, err := h.chat.MarkMessageRead(ctx, int64(data.MessageID), data.AdminID); err != nil {
			return h.fail(client, inbound.Type, err)
		}
		return nil

	case proto.InboundTypeDeleteAllUserMessages:
		data, perr := decodeData[proto.DeleteAllUserMessagesData](inbound)
		if perr != nil {
			return perr
		}
		n, err := h.chat.DeleteAllUserMessages(ctx, data.UserID)
		if err != nil {
			return h.fail(client, inbound.Type, err)
		}
		h.hub.Send(client, &core.Event{Kind: core.EventDeleteAllUserMessagesResult, Payload: clearUserResult(data.UserID, n)})
		return nil

	case proto.InboundTypeDeleteAllMessages:
		data, perr := decodeData[proto.DeleteAllMessagesData](inbound)
		if perr != nil {
			return perr
		}
		res, err := h.chat.DeleteAllMessages(ctx, data.AdminID)
		if err != nil {
			return h.fail(client, inbound.Type, err)
		}
		h.hub.Send(client, &core.Event{Kind: core.EventDeleteAllMessagesResult, Payload: clearAllResult(res)})
		return nil

	case proto.InboundTypeEditMessage:
		data, perr := decodeData[proto.EditMessageData](inbound)
		if perr != nil {
			return perr
		}
		msg, err := h.chat.EditMessage(ctx, int64(data.MessageID), data.Content, data.AdminID, data.Reason)
		if err != nil {
			return h.fail(client, inbound.Type, err)
		}
		h.hub.Send(client, &core.Event{Kind: core.EventEditMessageResult, Payload: editResult(msg)})
		return nil

	default:
		return &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func (h *WSHandler) fail(client *core.Client, typ string, err error) *proto.Error {
	perr := protoError(err)
	if perr.Code == core.ErrCodeInternal {
		h.log.Error().Err(err).Str("client_id", client.ID).Str("type", typ).Msg("ws command failed")
	}
	return perr
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: event.Kind.String(),
		Data:  event.Payload,
	}
}
