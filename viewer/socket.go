package viewer

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/primtree/motion"
)

const socketWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LevelMessage carries every node of one depth. Parent ids refer to nodes
// sent in earlier messages.
type LevelMessage struct {
	Depth int               `json:"depth"`
	Nodes []motion.FlatNode `json:"nodes"`
}

// DoneMessage closes a stream.
type DoneMessage struct {
	Done  bool         `json:"done"`
	Stats motion.Stats `json:"stats"`
}

// ErrorMessage is sent instead of levels when the tree cannot be built.
type ErrorMessage struct {
	Error string `json:"error"`
}

// levels groups a pre-order flattening by depth, keeping pre-order within a level.
func levels(flat []motion.FlatNode) [][]motion.FlatNode {
	var out [][]motion.FlatNode
	for _, fn := range flat {
		for len(out) <= fn.Depth {
			out = append(out, nil)
		}
		out[fn.Depth] = append(out[fn.Depth], fn)
	}
	return out
}

// handleTreeSocket builds the requested tree and streams it one depth level
// per message so a renderer can draw the root first and refine outward.
func (s *Server) handleTreeSocket(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		return conn.WriteJSON(v)
	}

	root, err := s.build(r.Context(), req)
	if err != nil {
		_ = send(ErrorMessage{Error: err.Error()})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "tree rejected"),
			time.Now().Add(time.Second))
		return
	}

	for depth, nodes := range levels(motion.Flatten(root)) {
		if err := send(LevelMessage{Depth: depth, Nodes: nodes}); err != nil {
			s.logger.Warn("websocket write failed", "depth", depth, "err", err)
			return
		}
	}
	if err := send(DoneMessage{Done: true, Stats: motion.Summarize(root)}); err != nil {
		s.logger.Warn("websocket write failed", "err", err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
