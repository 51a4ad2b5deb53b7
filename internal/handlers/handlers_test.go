package handlers

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/realtime"
	"github.com/developia-II/feedback-board-backend/internal/repository"
	"github.com/developia-II/feedback-board-backend/internal/services"
	"github.com/developia-II/feedback-board-backend/utils"
)

type envelope struct {
	Data       json.RawMessage  `json:"data"`
	NextCursor *string          `json:"next_cursor"`
	Error      *utils.ErrorBody `json:"error"`
}

type testEnv struct {
	app      *fiber.App
	mem      *repository.Memory
	registry *realtime.Registry
	events   map[string]models.Event
}

func newTestEnv(t *testing.T, summaries bool) *testEnv {
	t.Helper()
	mem := repository.NewMemory()
	registry := &realtime.Registry{}
	hub := registry.GetOrInit()
	t.Cleanup(hub.Shutdown)

	feedbacks := services.NewFeedbackService(mem, realtime.NewHubPublisher(registry), nil)
	opts := Options{Feedbacks: feedbacks, Events: mem, Registry: registry}
	if summaries {
		opts.Summaries = services.NewSummaryService(mem, nil, 0, nil)
	}

	app := fiber.New(FiberConfig())
	New(opts).Routes(app)

	env := &testEnv{app: app, mem: mem, registry: registry, events: map[string]models.Event{}}
	for _, name := range []string{"GopherCon", "KubeCon"} {
		ev, err := mem.EnsureEvent(context.Background(), name)
		require.NoError(t, err)
		env.events[name] = ev
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func (e *testEnv) seed(t *testing.T, eventID string, n int) {
	t.Helper()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range n {
		_, err := e.mem.Create(context.Background(), repository.NewFeedback{
			EventID:   eventID,
			Rating:    i%5 + 1,
			Text:      fmt.Sprintf("feedback %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
}

func decodeItems(t *testing.T, raw json.RawMessage) []models.FeedbackItem {
	t.Helper()
	var items []models.FeedbackItem
	require.NoError(t, json.Unmarshal(raw, &items))
	return items
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t, false)

	status, body := env.do(t, fiber.MethodGet, "/api/v1/events", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body.NextCursor)

	var events []models.Event
	require.NoError(t, json.Unmarshal(body.Data, &events))
	require.Len(t, events, 2)
	assert.Equal(t, "GopherCon", events[0].Name)
	assert.Equal(t, "KubeCon", events[1].Name)
}

func TestCreateFeedback(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.events["GopherCon"]

	status, body := env.do(t, fiber.MethodPost, "/api/v1/feedbacks",
		fmt.Sprintf(`{"event_id":%q,"rating":5,"text":"  Loved the keynote  "}`, ev.ID))
	require.Equal(t, fiber.StatusCreated, status)
	assert.Nil(t, body.NextCursor)

	var item models.FeedbackItem
	require.NoError(t, json.Unmarshal(body.Data, &item))
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, ev.ID, item.EventID)
	assert.Equal(t, "GopherCon", item.EventName)
	assert.Equal(t, 5, item.Rating)
	assert.Equal(t, "Loved the keynote", item.Text)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, item.CreatedAt)

	_, list := env.do(t, fiber.MethodGet, "/api/v1/feedbacks", "")
	items := decodeItems(t, list.Data)
	require.Len(t, items, 1)
	assert.Equal(t, item, items[0])
}

func TestCreateFeedbackErrors(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.events["GopherCon"].ID

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"event_id":`, fiber.StatusBadRequest},
		{"empty body", ``, fiber.StatusBadRequest},
		{"rating as string", fmt.Sprintf(`{"event_id":%q,"rating":"5","text":"x"}`, id), fiber.StatusUnprocessableEntity},
		{"rating too high", fmt.Sprintf(`{"event_id":%q,"rating":6,"text":"x"}`, id), fiber.StatusUnprocessableEntity},
		{"rating missing", fmt.Sprintf(`{"event_id":%q,"text":"x"}`, id), fiber.StatusUnprocessableEntity},
		{"blank text", fmt.Sprintf(`{"event_id":%q,"rating":3,"text":"   "}`, id), fiber.StatusUnprocessableEntity},
		{"text too long", fmt.Sprintf(`{"event_id":%q,"rating":3,"text":%q}`, id, strings.Repeat("x", 1001)), fiber.StatusUnprocessableEntity},
		{"event id not uuid", `{"event_id":"abc","rating":3,"text":"x"}`, fiber.StatusUnprocessableEntity},
		{"unknown event", `{"event_id":"7f1c1a5e-4b9d-4c1e-9a63-1d2f5e6a7b8c","rating":3,"text":"x"}`, fiber.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, fiber.MethodPost, "/api/v1/feedbacks", tc.body)
			assert.Equal(t, tc.status, status)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.status, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestCreateFeedbackValidationDetails(t *testing.T) {
	env := newTestEnv(t, false)

	_, body := env.do(t, fiber.MethodPost, "/api/v1/feedbacks",
		fmt.Sprintf(`{"event_id":%q,"rating":9,"text":"x"}`, env.events["GopherCon"].ID))
	require.NotNil(t, body.Error)

	raw, err := json.Marshal(body.Error.Details)
	require.NoError(t, err)
	var details []utils.FieldError
	require.NoError(t, json.Unmarshal(raw, &details))
	require.Len(t, details, 1)
	assert.Equal(t, utils.FieldError{Field: "rating", Rule: "max", Param: "5"}, details[0])
}

func TestListFeedbacksPaginatesEndToEnd(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t, env.events["GopherCon"].ID, 25)

	status, first := env.do(t, fiber.MethodGet, "/api/v1/feedbacks", "")
	require.Equal(t, fiber.StatusOK, status)
	page1 := decodeItems(t, first.Data)
	require.Len(t, page1, 20)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, "feedback 24", page1[0].Text)

	status, second := env.do(t, fiber.MethodGet, "/api/v1/feedbacks?cursor="+url.QueryEscape(*first.NextCursor), "")
	require.Equal(t, fiber.StatusOK, status)
	page2 := decodeItems(t, second.Data)
	require.Len(t, page2, 5)
	assert.Nil(t, second.NextCursor)
	assert.Equal(t, "feedback 4", page2[0].Text)
	assert.Equal(t, "feedback 0", page2[4].Text)
}

func TestListFeedbacksFiltersAndSorts(t *testing.T) {
	env := newTestEnv(t, false)
	gopher, kube := env.events["GopherCon"].ID, env.events["KubeCon"].ID
	env.seed(t, gopher, 10)
	env.seed(t, kube, 3)

	_, body := env.do(t, fiber.MethodGet, "/api/v1/feedbacks?event_id="+kube, "")
	for _, it := range decodeItems(t, body.Data) {
		assert.Equal(t, kube, it.EventID)
	}

	_, body = env.do(t, fiber.MethodGet, "/api/v1/feedbacks?rating=5&event_id="+gopher, "")
	items := decodeItems(t, body.Data)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, 5, it.Rating)
	}

	_, body = env.do(t, fiber.MethodGet, "/api/v1/feedbacks?sort=highest&limit=3&event_id="+gopher, "")
	items = decodeItems(t, body.Data)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"feedback 9", "feedback 4", "feedback 8"},
		[]string{items[0].Text, items[1].Text, items[2].Text})
	require.NotNil(t, body.NextCursor)
}

func TestListFeedbacksRejectsInvalidQuery(t *testing.T) {
	env := newTestEnv(t, false)

	for _, query := range []string{
		"sort=oldest",
		"limit=0",
		"limit=51",
		"limit=ten",
		"rating=0",
		"rating=6",
		"event_id=not-a-uuid",
		"cursor=garbage",
		"cursor=" + url.QueryEscape("eyJ2IjoyfQ"),
	} {
		t.Run(query, func(t *testing.T) {
			status, body := env.do(t, fiber.MethodGet, "/api/v1/feedbacks?"+query, "")
			assert.Equal(t, fiber.StatusUnprocessableEntity, status)
			require.NotNil(t, body.Error)
			assert.Equal(t, fiber.StatusUnprocessableEntity, body.Error.Code)
		})
	}
}

func TestListEventFeedbacks(t *testing.T) {
	env := newTestEnv(t, false)
	gopher, kube := env.events["GopherCon"].ID, env.events["KubeCon"].ID
	env.seed(t, gopher, 4)
	env.seed(t, kube, 2)

	status, body := env.do(t, fiber.MethodGet, "/api/v1/events/"+kube+"/feedbacks?event_id="+gopher, "")
	require.Equal(t, fiber.StatusOK, status)
	items := decodeItems(t, body.Data)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, "KubeCon", it.EventName)
	}

	status, body = env.do(t, fiber.MethodGet, "/api/v1/events/7f1c1a5e-4b9d-4c1e-9a63-1d2f5e6a7b8c/feedbacks", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Event not found", body.Error.Message)
}

func TestEventSummary(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, false)
		status, body := env.do(t, fiber.MethodGet, "/api/v1/events/"+env.events["GopherCon"].ID+"/summary", "")
		assert.Equal(t, fiber.StatusNotFound, status)
		require.NotNil(t, body.Error)
	})

	t.Run("unknown event", func(t *testing.T) {
		env := newTestEnv(t, true)
		status, _ := env.do(t, fiber.MethodGet, "/api/v1/events/7f1c1a5e-4b9d-4c1e-9a63-1d2f5e6a7b8c/summary", "")
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("heuristic", func(t *testing.T) {
		env := newTestEnv(t, true)
		id := env.events["GopherCon"].ID
		env.seed(t, id, 5)

		status, body := env.do(t, fiber.MethodGet, "/api/v1/events/"+id+"/summary", "")
		require.Equal(t, fiber.StatusOK, status)

		var got summaryResponse
		require.NoError(t, json.Unmarshal(body.Data, &got))
		assert.Equal(t, id, got.EventID)
		assert.Equal(t, 40, got.Summary.PositivePercentage)
		assert.Equal(t, []string{"feedback 4", "feedback 3"}, got.Summary.TopHighlights)
		assert.Equal(t, []string{"feedback 0", "feedback 1"}, got.Summary.AreasForImprovement)
	})
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := newTestEnv(t, false)
	status, body := env.do(t, fiber.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, fiber.StatusNotFound, body.Error.Code)
}

func readSocketJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func writeSocketJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestSocketDeliversJoinedRooms(t *testing.T) {
	env := newTestEnv(t, false)
	gopher, kube := env.events["GopherCon"].ID, env.events["KubeCon"].ID

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.ShutdownWithTimeout(time.Second) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+ln.Addr().String()+"/api/socket", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	writeSocketJSON(t, ctx, conn, socketMessage{Action: actionJoin, Room: "event:" + gopher})
	// Joins are handled in order, so the error reply confirms the first join.
	writeSocketJSON(t, ctx, conn, socketMessage{Action: actionJoin, Room: "event:not-a-uuid"})

	var errMsg socketError
	readSocketJSON(t, ctx, conn, &errMsg)
	assert.Equal(t, errorMessage("Invalid room"), errMsg)

	status, _ := env.do(t, fiber.MethodPost, "/api/v1/feedbacks",
		fmt.Sprintf(`{"event_id":%q,"rating":2,"text":"too cold"}`, kube))
	require.Equal(t, fiber.StatusCreated, status)
	status, created := env.do(t, fiber.MethodPost, "/api/v1/feedbacks",
		fmt.Sprintf(`{"event_id":%q,"rating":4,"text":"great venue"}`, gopher))
	require.Equal(t, fiber.StatusCreated, status)

	var item models.FeedbackItem
	require.NoError(t, json.Unmarshal(created.Data, &item))

	var evt realtime.Event
	readSocketJSON(t, ctx, conn, &evt)
	assert.Equal(t, realtime.EventFeedbackCreated, evt.Type)
	assert.Equal(t, item, evt.Payload)
}

func TestSocketRejectsPlainHTTP(t *testing.T) {
	env := newTestEnv(t, false)
	status, body := env.do(t, fiber.MethodGet, "/api/socket", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
	require.NotNil(t, body.Error)
}
