package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// sampleInput yields four schedulable sessions and two skipped ones.
const sampleInput = `[{"Courses":[
  {"courseid":101,"coursename":"Mathematics","section":"S1","classschedule":[
    {"duration":"1:30","roomid":"R1","employeeid":7,"day":["Monday","Tuesday"]},
    {"duration":"1:30","roomid":["R1","R2"],"employeeid":7,"day":["Monday","Tuesday"],"roomChoice":true}
  ]},
  {"courseid":"PHY","coursename":"Physics","section":"S1","classschedule":[
    {"duration":2,"roomid":"LAB","employeeid":"E2","day":"Wednesday"},
    {"duration":"1:00","employeeid":"E2"}
  ]},
  {"courseid":"CHE","coursename":"Chemistry","section":"S2","classschedule":[
    {"duration":"1:00","roomid":"LAB","day":"Friday"},
    {"duration":"3:00","roomid":"R3","employeeid":"E9","Type":"Overload"}
  ]}
]}]`

func decodeRequest(t *testing.T, body string) dto.GenerateTimetableRequest {
	t.Helper()
	var req dto.GenerateTimetableRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func seededRequest(t *testing.T, strategy string, seed int64) dto.GenerateTimetableRequest {
	t.Helper()
	req := decodeRequest(t, sampleInput)
	req.Strategy = strategy
	req.Seed = &seed
	return req
}

type memCacheRepo struct {
	mu      sync.Mutex
	items   map[string][]byte
	gets    int
	sets    int
	failSet error
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{items: make(map[string][]byte)}
}

func (m *memCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.failSet != nil {
		return m.failSet
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memCacheRepo) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

func (m *memCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *memCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

func modelsFilter() models.TimetableRunFilter {
	return models.TimetableRunFilter{Page: 1, PageSize: 10}
}
