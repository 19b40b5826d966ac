package telepath

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/types"
)

// Server answers telepath Requests against a wrapped local cortex
// (ram, sqlite, or postgres — never another telepath proxy).
type Server struct {
	backend cortex.Cortex
	ln      net.Listener

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewServer wraps backend for remote access and begins accepting on ln.
func NewServer(backend cortex.Cortex, ln net.Listener) *Server {
	s := &Server{backend: backend, ln: ln}
	s.wg.Add(1)
	go s.acceptLoop()
	return s
}

// Close stops accepting new connections and releases the listener.
// It does not Fini the wrapped backend.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 {
			return
		}

		var req Request
		var resp Response
		if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
			resp = Response{OK: false, Error: "telepath: bad request: " + jsonErr.Error()}
		} else {
			resp = s.handle(context.Background(), req)
		}

		out, marshalErr := json.Marshal(resp)
		if marshalErr != nil {
			return
		}
		out = append(out, '\n')
		if _, writeErr := writer.Write(out); writeErr != nil {
			return
		}
		if flushErr := writer.Flush(); flushErr != nil {
			return
		}
		if err != nil {
			return // reader hit EOF/error after the final complete line
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpPing:
		return Response{OK: true}

	case OpAddRows:
		rows, err := decodeRows(req.Rows)
		if err != nil {
			return errResp(err)
		}
		if err := s.backend.AddRows(ctx, rows, req.Async); err != nil {
			return errResp(err)
		}
		return Response{OK: true}

	case OpGetRowsByID:
		rows, err := s.backend.GetRowsByID(ctx, req.ID)
		return rowsResp(rows, err)

	case OpGetRowsByProp:
		q, err := decodePropQuery(req.PropQuery)
		if err != nil {
			return errResp(err)
		}
		rows, err := s.backend.GetRowsByProp(ctx, req.Prop, q)
		return rowsResp(rows, err)

	case OpGetRowsBy:
		q, err := decodeByQuery(req.ByQuery)
		if err != nil {
			return errResp(err)
		}
		rows, err := s.backend.GetRowsBy(ctx, q)
		return rowsResp(rows, err)

	case OpGetJoinByID:
		rows, err := s.backend.GetJoinByID(ctx, req.ID)
		return rowsResp(rows, err)

	case OpGetJoinByProp:
		q, err := decodePropQuery(req.PropQuery)
		if err != nil {
			return errResp(err)
		}
		rows, err := s.backend.GetJoinByProp(ctx, req.Prop, q)
		return rowsResp(rows, err)

	case OpGetJoinBy:
		q, err := decodeByQuery(req.ByQuery)
		if err != nil {
			return errResp(err)
		}
		rows, err := s.backend.GetJoinBy(ctx, q)
		return rowsResp(rows, err)

	case OpGetSizeByID:
		n, err := s.backend.GetSizeByID(ctx, req.ID)
		return sizeResp(n, err)

	case OpGetSizeByProp:
		q, err := decodePropQuery(req.PropQuery)
		if err != nil {
			return errResp(err)
		}
		n, err := s.backend.GetSizeByProp(ctx, req.Prop, q)
		return sizeResp(n, err)

	case OpGetSizeBy:
		q, err := decodeByQuery(req.ByQuery)
		if err != nil {
			return errResp(err)
		}
		n, err := s.backend.GetSizeBy(ctx, q)
		return sizeResp(n, err)

	case OpAddType:
		s.backend.AddType(req.TypeName, req.TypeBase, types.Flags{IsMin: req.TypeFlags.IsMin, IsMax: req.TypeFlags.IsMax})
		return Response{OK: true}

	case OpAddTufoForm:
		s.backend.AddTufoForm(req.Form)
		return Response{OK: true}

	case OpAddTufoProp:
		s.backend.AddTufoProp(req.Prop, req.TypeName)
		return Response{OK: true}

	default:
		return Response{OK: false, Error: "telepath: unknown op " + string(req.Op)}
	}
}

func decodePropQuery(q *wirePropQuery) (cortex.PropQuery, error) {
	if q == nil {
		return cortex.PropQuery{}, nil
	}
	return q.decode()
}

func decodeByQuery(q *wireByQuery) (cortex.ByQuery, error) {
	if q == nil {
		return cortex.ByQuery{}, nil
	}
	return q.decode()
}

func errResp(err error) Response {
	return Response{OK: false, Error: err.Error()}
}

func rowsResp(rows []types.Row, err error) Response {
	if err != nil {
		return errResp(err)
	}
	wr, encErr := encodeRows(rows)
	if encErr != nil {
		return errResp(encErr)
	}
	return Response{OK: true, Rows: wr}
}

func sizeResp(n int, err error) Response {
	if err != nil {
		return errResp(err)
	}
	return Response{OK: true, Size: n}
}
