package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/answer"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/chat"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/ledger"
	"github.com/YeQiu29/absensi-wa-bot/internal/platform/config"
)

type outbox struct {
	mu     sync.Mutex
	bodies []map[string]string
}

func (o *outbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	o.mu.Lock()
	o.bodies = append(o.bodies, body)
	o.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func testConfig(t *testing.T, gatewayURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server:   config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		WhatsApp: config.WhatsAppConfig{GatewayURL: gatewayURL},
		Assistant: config.AssistantConfig{
			DocumentsDir: filepath.Join(dir, "documents"),
			Organization: "PT. Contoh",
		},
		Ledger: config.LedgerConfig{Dir: filepath.Join(dir, "ledger")},
		Poller: config.PollerConfig{LateAfter: "07:00"},
		Schedule: config.ScheduleConfig{
			Poll:      "*/2 6-20 * * *",
			Morning:   "0 7 * * 1-5",
			Afternoon: "0 17 * * 1-5",
			Reset:     "0 0 * * *",
		},
	}
}

func TestAssemble_UnregisteredSenderWithoutAssistant(t *testing.T) {
	t.Parallel()

	box := &outbox{}
	gw := httptest.NewServer(box)
	t.Cleanup(gw.Close)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	a, err := Assemble(context.Background(), testConfig(t, gw.URL), mock, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, []string{JobAfternoon, JobReset, JobMorning, JobPoll}, a.Scheduler.Jobs())
	assert.False(t, a.Answerer.Configured())

	mock.ExpectQuery("FROM karyawan").
		WithArgs([]string{"6289999999999", "089999999999", "+6289999999999"}).
		WillReturnError(pgx.ErrNoRows)

	msg := chat.InboundMessage{ID: "wamid-1", From: "6289999999999@c.us", Body: "hello"}
	require.NoError(t, a.Router.Handle(context.Background(), msg))
	require.NoError(t, a.Router.Handle(context.Background(), msg))

	box.mu.Lock()
	require.Len(t, box.bodies, 1)
	assert.Equal(t, answer.NotConfiguredText, box.bodies[0]["body"])
	assert.Equal(t, "6289999999999@c.us", box.bodies[0]["to"])
	box.mu.Unlock()

	assert.True(t, a.Replies.Seen("wamid-1"))
	require.NoError(t, a.Reset.Reset(context.Background()))
	assert.False(t, a.Replies.Seen("wamid-1"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssemble_RefusesLedgerHeldByAnotherInstance(t *testing.T) {
	t.Parallel()

	gw := httptest.NewServer(&outbox{})
	t.Cleanup(gw.Close)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := testConfig(t, gw.URL)
	running, err := Assemble(context.Background(), cfg, mock, nil)
	require.NoError(t, err)

	_, err = Assemble(context.Background(), cfg, mock, nil)
	require.ErrorIs(t, err, ledger.ErrLocked)

	require.NoError(t, running.Close())

	next, err := Assemble(context.Background(), cfg, mock, nil)
	require.NoError(t, err)
	require.NoError(t, next.Close())
}
