package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/codecrew-ai/codecrew/internal/rpc"
	"github.com/codecrew-ai/codecrew/internal/rpc/connectjson"
)

const ConnectChatProcedure = "/codecrew.chat.v1.ChatService/Chat"

// NewConnectHandler builds a Connect bidi stream handler for Chat.
func NewConnectHandler(dispatcher *Dispatcher) (string, http.Handler) {
	h := &connectChatHandler{dispatcher: dispatcher}
	return ConnectChatProcedure, connect.NewBidiStreamHandler(ConnectChatProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectChatHandler struct {
	dispatcher *Dispatcher
}

func (h *connectChatHandler) handle(ctx context.Context, stream *connect.BidiStream[rpc.ChatStreamRequest, rpc.ServerFrame]) error {
	m := h.dispatcher.Metrics
	m.IncActiveSessions("connect")
	defer m.DecActiveSessions("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.Receive()
	if err != nil {
		m.RecordTransportError("connect", "receive_first")
		return err
	}
	if first == nil || first.Send == nil {
		m.RecordTransportError("connect", "missing_send")
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include send payload"))
	}

	// Listen for cancellation messages from the client.
	go func() {
		for {
			msg, recvErr := stream.Receive()
			if recvErr != nil {
				if !errors.Is(recvErr, context.Canceled) {
					m.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	frames := h.dispatcher.Run(ctx, *first.Send)
	for frame := range frames {
		if err := stream.Send(&frame); err != nil {
			m.RecordTransportError("connect", "send")
			cancel()
			for range frames {
			}
			return err
		}
	}
	return nil
}
