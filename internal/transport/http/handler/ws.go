package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bacopilot/internal/app"
	"bacopilot/internal/documents"
	"bacopilot/internal/logging"
	"bacopilot/internal/model"
	"bacopilot/internal/pipeline"
	"bacopilot/internal/transport/http/middleware"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn serializes writes to a websocket connection. It has a single
// reader, the goroutine owning the socket.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsConn) Send(v any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

// Receive reads the next text message. Ending ctx unblocks the read.
func (w *wsConn) Receive(ctx context.Context) (string, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = w.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return string(data), nil
}

func (w *wsConn) close(code int, reason string) {
	w.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	w.writeMu.Unlock()
	_ = w.conn.Close()
}

// documentRef accepts either "srs" or {"type": "srs"} in a document list.
type documentRef string

func (d *documentRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = documentRef(s)
		return nil
	}
	var obj struct {
		Type    string `json:"type"`
		DocType string `json:"doc_type"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("document entry must be a string or an object with a type: %w", err)
	}
	if obj.Type == "" {
		obj.Type = obj.DocType
	}
	*d = documentRef(obj.Type)
	return nil
}

type stepMessage struct {
	Action      string        `json:"action"`
	Step        string        `json:"step"`
	ProjectName string        `json:"project_name"`
	Description string        `json:"description"`
	Documents   []documentRef `json:"documents"`
}

type WSHandler struct {
	auth           middleware.Authenticator
	projectService *app.ProjectService
	registry       *pipeline.Registry
	hub            *pipeline.Hub
	runner         *pipeline.Runner
}

func NewWSHandler(
	auth middleware.Authenticator,
	projectService *app.ProjectService,
	registry *pipeline.Registry,
	hub *pipeline.Hub,
	runner *pipeline.Runner,
) *WSHandler {
	return &WSHandler{
		auth:           auth,
		projectService: projectService,
		registry:       registry,
		hub:            hub,
		runner:         runner,
	}
}

// accept upgrades the request, then authenticates the ?token= query value and
// loads the project. Failures are reported on the socket, which is closed
// with a policy violation.
func (h *WSHandler) accept(c *gin.Context) (*wsConn, uint, *model.Project, bool) {
	projectID, ok := uintParam(c, "project_id")
	if !ok {
		return nil, 0, nil, false
	}

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already answered the request
		logging.FromContext(c.Request.Context()).Warn("websocket upgrade failed", "error", err)
		return nil, 0, nil, false
	}
	conn := &wsConn{conn: raw}

	reject := func(message string) {
		_ = conn.Send(gin.H{"error": message})
		conn.close(websocket.ClosePolicyViolation, message)
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		reject("Missing token")
		return nil, 0, nil, false
	}
	claims, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		reject("Invalid token")
		return nil, 0, nil, false
	}

	project, err := h.projectService.Get(c.Request.Context(), claims.UserID, projectID)
	if err != nil {
		if errors.Is(err, app.ErrProjectNotFound) {
			reject("Project not found")
		} else {
			logging.FromContext(c.Request.Context()).Error("load project failed", "project_id", projectID, "error", err)
			_ = conn.Send(gin.H{"error": "internal error"})
			conn.close(websocket.CloseInternalServerErr, "internal error")
		}
		return nil, 0, nil, false
	}
	return conn, claims.UserID, project, true
}

// StepSocket runs one pipeline step. The client sends a single start
// message; progress events follow until the step ends and the socket is
// closed. Disconnecting or sending {"action":"cancel"} cancels the step.
func (h *WSHandler) StepSocket(c *gin.Context) {
	step, ok := documents.ParseStep(c.Param("step"))
	if !ok || !documents.IsPipelineStep(step) {
		respondError(c, fmt.Errorf("%w: unknown step %q", app.ErrInvalidInput, c.Param("step")), "invalid step")
		return
	}
	conn, userID, project, ok := h.accept(c)
	if !ok {
		return
	}
	logger := logging.FromContext(c.Request.Context()).With(
		"project_id", project.ID, "user_id", userID, "step", step)

	first, err := conn.Receive(context.Background())
	if err != nil {
		conn.close(websocket.CloseNormalClosure, "")
		return
	}
	var msg stepMessage
	if err := json.Unmarshal([]byte(first), &msg); err != nil {
		h.rejectStep(conn, step, "invalid start message")
		return
	}

	req := stepRequest(project, userID, step, msg)
	if _, err := h.runner.Validate(req); err != nil {
		h.rejectStep(conn, step, err.Error())
		return
	}

	key := pipeline.Key{ProjectID: project.ID, UserID: userID, Step: step}
	defer h.hub.Unregister(key, conn)

	job, err := h.start(key, req, conn, logger)
	if err != nil {
		h.rejectStep(conn, step, err.Error())
		return
	}

	go func() {
		for {
			text, err := conn.Receive(context.Background())
			if err != nil {
				job.Cancel()
				return
			}
			var ctrl stepMessage
			if json.Unmarshal([]byte(text), &ctrl) == nil && strings.EqualFold(ctrl.Action, "cancel") {
				job.Cancel()
			}
		}
	}()

	<-job.Done()
	if err := job.Err(); err != nil && !app.IsCanceled(err) {
		logger.Warn("step ended with error", "error", err)
	}
	conn.close(websocket.CloseNormalClosure, "")
}

// GenerateSocket is a control socket for the pipeline of a project. Each
// message carries an action:
//
//	{"action":"start","step":"planning","documents":[...],"description":"..."}
//	{"action":"cancel","step":"planning"}   cancel one step, or every step when step is empty
//	{"action":"stop"}                       cancel every step and close the socket
//
// Events of started steps are pushed on the same socket. Steps started here
// are canceled when the socket goes away.
func (h *WSHandler) GenerateSocket(c *gin.Context) {
	conn, userID, project, ok := h.accept(c)
	if !ok {
		return
	}
	logger := logging.FromContext(c.Request.Context()).With("project_id", project.ID, "user_id", userID)

	var started []*pipeline.Job
	defer func() {
		for _, job := range started {
			job.Cancel()
		}
		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, job := range started {
			_ = job.Wait(waitCtx)
		}
		h.hub.UnregisterAll(conn)
	}()

	for {
		text, err := conn.Receive(context.Background())
		if err != nil {
			return
		}
		var msg stepMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			_ = conn.Send(gin.H{"type": "error", "error": "invalid message"})
			continue
		}

		switch strings.ToLower(strings.TrimSpace(msg.Action)) {
		case "start":
			step, ok := documents.ParseStep(msg.Step)
			if !ok || !documents.IsPipelineStep(step) {
				_ = conn.Send(pipeline.Event{Type: "error", Step: msg.Step, Error: "unknown step"})
				continue
			}
			req := stepRequest(project, userID, step, msg)
			if _, err := h.runner.Validate(req); err != nil {
				_ = conn.Send(pipeline.Event{Type: "error", Step: string(step), Error: err.Error()})
				continue
			}
			key := pipeline.Key{ProjectID: project.ID, UserID: userID, Step: step}
			job, err := h.start(key, req, conn, logger.With("step", step))
			if err != nil {
				_ = conn.Send(pipeline.Event{Type: "error", Step: string(step), Error: err.Error()})
				return
			}
			started = append(started, job)

		case "cancel":
			if msg.Step == "" {
				jobs := h.registry.CancelProject(project.ID, userID)
				_ = conn.Send(gin.H{"type": "cancel_requested", "cancelled": len(jobs)})
				continue
			}
			step, _ := documents.ParseStep(msg.Step)
			cancelled := h.registry.Cancel(pipeline.Key{ProjectID: project.ID, UserID: userID, Step: step})
			_ = conn.Send(gin.H{"type": "cancel_requested", "step": step, "cancelled": cancelled})

		case "stop":
			jobs := h.registry.CancelProject(project.ID, userID)
			_ = conn.Send(gin.H{"type": "stopped", "cancelled": len(jobs)})
			conn.close(websocket.CloseNormalClosure, "")
			return

		default:
			_ = conn.Send(gin.H{"type": "error", "error": "unknown action " + msg.Action})
		}
	}
}

// OneClick generates an SRS, a wireframe and a use case diagram in turn and
// asks the client to confirm between steps. ?description= overrides the
// default prompt. The run is a registry job: a disconnect, a stop on the
// control socket or server shutdown cancels it, and a new one-click run for
// the same project replaces it.
func (h *WSHandler) OneClick(c *gin.Context) {
	conn, userID, project, ok := h.accept(c)
	if !ok {
		return
	}
	logger := logging.FromContext(c.Request.Context()).With("project_id", project.ID, "user_id", userID)

	req := pipeline.OneClickRequest{
		ProjectID:   project.ID,
		UserID:      userID,
		Description: c.Query("description"),
	}
	conv := &replyQueue{wsConn: conn, replies: make(chan string, 1)}
	key := pipeline.Key{ProjectID: project.ID, UserID: userID, Step: pipeline.OneClickStep}
	job, err := h.registry.Start(key, func(ctx context.Context) error {
		return h.runner.RunOneClick(logging.WithLogger(ctx, logger), req, conv)
	})
	if err != nil {
		_ = conn.Send(gin.H{"error": err.Error()})
		conn.close(websocket.CloseGoingAway, "")
		return
	}

	// the socket is read here even while a document is generating, so a
	// disconnect cancels the AI call in flight
	go func() {
		defer close(conv.replies)
		for {
			text, err := conn.Receive(context.Background())
			if err != nil {
				job.Cancel()
				return
			}
			select {
			case conv.replies <- text:
			case <-job.Done():
				return
			}
		}
	}()

	<-job.Done()
	if err := job.Err(); err != nil {
		if app.IsCanceled(err) {
			_ = conn.Send(gin.H{"status": "cancelled"})
		} else {
			logger.Info("one click ended early", "error", err)
		}
	}
	conn.close(websocket.CloseNormalClosure, "")
}

// replyQueue answers Receive from the messages the socket reader queued.
type replyQueue struct {
	*wsConn
	replies chan string
}

func (q *replyQueue) Receive(ctx context.Context) (string, error) {
	select {
	case text, ok := <-q.replies:
		if !ok {
			return "", errConnectionClosed
		}
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// start runs req as the job of key. conn subscribes to the new run from
// inside the job, after a replaced run has ended, so it only receives the
// events of its own run.
func (h *WSHandler) start(key pipeline.Key, req pipeline.StepRequest, conn pipeline.Sender, logger *slog.Logger) (*pipeline.Job, error) {
	return h.registry.StartJob(key, func(ctx context.Context, job *pipeline.Job) error {
		h.hub.Register(key, job.ID(), conn)
		return h.runner.RunStep(logging.WithLogger(ctx, logger), req, h.hub.Notifier(key, job.ID()))
	})
}

func (h *WSHandler) rejectStep(conn *wsConn, step documents.Step, message string) {
	_ = conn.Send(pipeline.Event{Type: "error", Step: string(step), Error: message})
	conn.close(websocket.CloseNormalClosure, "")
}

func stepRequest(project *model.Project, userID uint, step documents.Step, msg stepMessage) pipeline.StepRequest {
	name := msg.ProjectName
	if name == "" {
		name = project.Name
	}
	docs := make([]string, 0, len(msg.Documents))
	for _, d := range msg.Documents {
		docs = append(docs, strings.TrimSpace(string(d)))
	}
	return pipeline.StepRequest{
		ProjectID:   project.ID,
		UserID:      userID,
		Step:        step,
		ProjectName: name,
		Description: msg.Description,
		Documents:   docs,
	}
}
