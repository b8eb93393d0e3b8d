// Package agent connects to a control websocket, runs the signed jobs it
// receives and streams each result back over a per-job data websocket.
//
// A data stream is gob encoded: one Header, then one Frame per batch, then a
// final Frame with Done set. A failure is reported in the final frame's Err.
package agent

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"querysource/internal/config"
	"querysource/internal/connector"
	"querysource/internal/errs"
	"querysource/internal/executor"
	"querysource/internal/schema"
	"querysource/internal/security"
)

func init() {
	gob.Register(time.Time{})
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// Command is a control message. Token is a security.JobClaims JWT.
type Command struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Header opens a data stream.
type Header struct {
	ColumnTypes      []schema.ColumnType
	ExpectedRowCount int64
}

// Frame carries one batch as rows of values in column order.
type Frame struct {
	Rows [][]any
	Done bool
	Err  string
}

type Agent struct {
	connector  *connector.Connector
	conn       config.Connection
	reactorURL string
	agentKey   string
	secret     string
	dialer     *websocket.Dialer
	wg         sync.WaitGroup
}

func New(c *connector.Connector, conn config.Connection, reactorURL, agentKey, secret string) *Agent {
	return &Agent{
		connector:  c,
		conn:       conn,
		reactorURL: reactorURL,
		agentKey:   agentKey,
		secret:     secret,
		dialer:     websocket.DefaultDialer,
	}
}

func (a *Agent) headers() http.Header {
	h := http.Header{}
	h.Set("X-Agent-Key", a.agentKey)
	return h
}

// Run reads commands from the control plane until ctx is done or the
// connection drops, then waits for running jobs.
func (a *Agent) Run(ctx context.Context) error {
	control, _, err := a.dialer.DialContext(ctx, a.reactorURL+"/agent/control", a.headers())
	if err != nil {
		return fmt.Errorf("failed to connect to control plane: %w", err)
	}
	slog.Info("Connected to control plane", "reactor", a.reactorURL)

	stop := context.AfterFunc(ctx, func() { _ = control.Close() })
	defer stop()
	defer a.wg.Wait()
	defer control.Close()

	for {
		_, message, err := control.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control read failed: %w", err)
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			slog.Error("Invalid command", "error", err)
			continue
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.Execute(ctx, cmd); err != nil {
				slog.Error("Job failed", "id", cmd.ID, "error", err)
			}
		}()
	}
}

// Execute verifies cmd, runs its query and streams the result to the data
// endpoint. Commands with a bad signature are dropped without a data stream.
func (a *Agent) Execute(ctx context.Context, cmd Command) error {
	claims, err := security.VerifyJob(a.secret, cmd.Token)
	if err != nil {
		return err
	}
	slog.Info("Received job", "id", cmd.ID, "path", claims.QueryPath)

	path := claims.QueryPath
	if path == "" {
		path = cmd.ID + ".sql"
	}
	res, runErr := a.connector.GetRunner(a.conn)(ctx, claims.Query, path, claims.BatchSize)

	dataURL := a.reactorURL + "/agent/data?job_id=" + url.QueryEscape(cmd.ID)
	data, _, err := a.dialer.DialContext(ctx, dataURL, a.headers())
	if err != nil {
		if res != nil {
			_ = res.Close()
		}
		return fmt.Errorf("failed to connect to data stream: %w", err)
	}
	defer data.Close()

	enc := gob.NewEncoder(&wsWriter{conn: data})
	switch {
	case runErr != nil:
		return errors.Join(runErr, sendFailure(enc, runErr))
	case res == nil:
		return sendFailure(enc, fmt.Errorf("%s is not a query file", path))
	}

	rows, err := Stream(ctx, res, enc)
	if err != nil {
		return err
	}
	slog.Info("Job completed", "id", cmd.ID, "rows", rows)
	return nil
}

func sendFailure(enc *gob.Encoder, cause error) error {
	if err := enc.Encode(Header{ExpectedRowCount: executor.UnknownRowCount}); err != nil {
		return err
	}
	return enc.Encode(Frame{Done: true, Err: errs.Message(cause)})
}

// Stream writes res to enc and returns the number of rows sent. A cleanup
// failure after the last batch is logged and not reported to the reader.
func Stream(ctx context.Context, res *executor.Result, enc *gob.Encoder) (int64, error) {
	if err := enc.Encode(Header{ColumnTypes: res.ColumnTypes, ExpectedRowCount: res.ExpectedRowCount}); err != nil {
		_ = res.Close()
		return 0, fmt.Errorf("failed to encode header: %w", err)
	}

	names := schema.Names(res.ColumnTypes)
	var sent int64
	for b, err := range res.Rows(ctx) {
		if err != nil {
			if errs.IsCleanup(err) {
				slog.Error("Cleanup failed after stream", "rows", sent, "error", err)
				continue
			}
			return sent, errors.Join(err, enc.Encode(Frame{Done: true, Err: errs.Message(err)}))
		}

		frame := Frame{Rows: make([][]any, len(b))}
		for i, row := range b {
			frame.Rows[i] = row.Values(names)
		}
		if err := enc.Encode(frame); err != nil {
			return sent, fmt.Errorf("failed to encode batch: %w", err)
		}
		sent += int64(len(b))
	}
	return sent, enc.Encode(Frame{Done: true})
}

// wsWriter sends every write as one binary message.
type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
