package handlers

import (
	"context"
	"sync"

	"petfeeder/internal/models"
	"petfeeder/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockFeeder struct {
	feedErr      error
	setErr       error
	getErr       error
	doc          []byte
	feedCalls    int
	setCalls     int
	lastSchedule []byte
}

func (m *mockFeeder) Feed(ctx context.Context) error {
	m.feedCalls++
	return m.feedErr
}

func (m *mockFeeder) SetSchedule(ctx context.Context, raw []byte) error {
	m.setCalls++
	m.lastSchedule = raw
	return m.setErr
}

func (m *mockFeeder) Schedule(ctx context.Context) ([]byte, error) {
	return m.doc, m.getErr
}

type mockMonitoring struct {
	mu     sync.Mutex
	status models.DeviceStatus
	err    error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.DeviceStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.err
}

func (m *mockMonitoring) setState(s models.DispenseState) {
	m.mu.Lock()
	m.status.State = s
	m.mu.Unlock()
}

type mockEventLog struct {
	resp       []models.FeedEvent
	err        error
	lastFilter service.LogFilter
	calls      int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.FeedEvent, error) {
	m.calls++
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
