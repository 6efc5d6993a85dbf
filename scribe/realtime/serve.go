package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"scribe/scribe/config"
	"scribe/scribe/sessions"
	"scribe/scribe/utils/logging"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type controlMessage struct {
	Action string `json:"action"`
}

type connectionFrame struct {
	Type      string    `json:"type"`
	MeetingID uuid.UUID `json:"meeting_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

type pongFrame struct {
	Type string `json:"type"`
}

type statusFrame struct {
	Type           string    `json:"type"`
	MeetingID      uuid.UUID `json:"meeting_id"`
	IsRecording    bool      `json:"is_recording"`
	SequenceNumber int       `json:"sequence_number"`
	BufferSize     int       `json:"buffer_size"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Serve pumps one connection for the meeting's session until either side
// goes away. Binary frames are audio; text frames are JSON control messages.
// Leaving never stops the session, it only drops this subscriber.
func Serve(ctx context.Context, conn *websocket.Conn, s *sessions.Session, meetingStatus string, policy config.Policy) {
	meetingID := s.MeetingID()
	conn.SetReadLimit(policy.ReadLimitBytes)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := NewClient(conn, meetingID, policy.SubscriberQueue)
	go c.writeLoop(ctx)
	defer func() {
		c.Close()
		<-c.written
	}()

	// queued before subscribing so it is always the first frame
	c.sendJSON(connectionFrame{
		Type:      "connection",
		MeetingID: meetingID,
		Status:    meetingStatus,
		Message:   "Connected to meeting transcription",
	})
	if err := s.Subscribe(c); err != nil {
		c.sendJSON(errorFrame{Type: "error", Error: "Meeting transcription not started"})
		return
	}
	defer s.Unsubscribe(c)

	logging.AppLogger.Info("Realtime client connected", zap.String("meeting_id", meetingID.String()))
	defer logging.AppLogger.Info("Realtime client disconnected", zap.String("meeting_id", meetingID.String()))

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if st := websocket.CloseStatus(err); st != websocket.StatusNormalClosure && st != websocket.StatusGoingAway &&
				!errors.Is(err, context.Canceled) {
				logging.ErrorLogger.Warn("websocket read error",
					zap.String("meeting_id", meetingID.String()), zap.Error(err))
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if err := s.ProcessAudioChunk(data); err != nil {
				// session ended, its close notice is on the way
				return
			}
		case websocket.MessageText:
			s.Touch()
			handleControl(c, s, data)
		}
	}
}

func handleControl(c *Client, s *sessions.Session, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.ErrorLogger.Warn("Malformed control message",
			zap.String("meeting_id", s.MeetingID().String()), zap.Error(err))
		c.sendJSON(errorFrame{Type: "error", Error: "invalid json"})
		return
	}

	switch msg.Action {
	case "ping":
		c.sendJSON(pongFrame{Type: "pong"})
	case "status":
		st := s.Status()
		c.sendJSON(statusFrame{
			Type:           "status",
			MeetingID:      st.MeetingID,
			IsRecording:    st.IsRecording,
			SequenceNumber: st.SequenceNumber,
			BufferSize:     st.BufferSize,
		})
	default:
		logging.AppLogger.Info("Ignoring unknown control action",
			zap.String("meeting_id", s.MeetingID().String()), zap.String("action", msg.Action))
	}
}
