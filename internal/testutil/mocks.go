package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"songbook/internal/models"
	"songbook/internal/repositories"
)

// MockSongRepository is a mock implementation of SongRepository for testing
type MockSongRepository struct {
	mock.Mock
}

var _ repositories.SongRepository = (*MockSongRepository)(nil)

func (m *MockSongRepository) Create() *models.Song {
	return models.NewSong()
}

func (m *MockSongRepository) Save(ctx context.Context, id string, song *models.Song) (string, error) {
	args := m.Called(ctx, id, song)
	return args.String(0), args.Error(1)
}

func (m *MockSongRepository) Fetch(ctx context.Context, id string) (*models.Song, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Song), args.Error(1)
}

func (m *MockSongRepository) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSongRepository) Search(ctx context.Context, query *repositories.Query) ([]*models.Song, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Song), args.Error(1)
}

func (m *MockSongRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSongRepository) EnsureIndex(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSongRepository) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSongRepository) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCache is a mock implementation of cache.Cache for testing
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockCache) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Helper functions for setting up mock expectations

// ExpectFetch sets up expectation for Fetch
func ExpectFetch(mockRepo *MockSongRepository, id string, song *models.Song, err error) {
	mockRepo.On("Fetch", mock.Anything, id).Return(song, err)
}

// ExpectSave sets up expectation for Save of any song under id
func ExpectSave(mockRepo *MockSongRepository, id, savedID string, err error) {
	mockRepo.On("Save", mock.Anything, id, mock.AnythingOfType("*models.Song")).Return(savedID, err)
}

// ExpectSearch sets up expectation for a Search whose query has the given key
func ExpectSearch(mockRepo *MockSongRepository, queryKey string, songs []*models.Song, err error) {
	mockRepo.On("Search", mock.Anything, mock.MatchedBy(func(q *repositories.Query) bool {
		return q != nil && q.Key() == queryKey
	})).Return(songs, err)
}
