package storageserver

import (
	"github.com/stretchr/testify/mock"

	"github.com/lfcarvalho/distfs/internal/path"
)

// BackendMock is a testify mock.Mock implementation of Backend, for
// tests that drive Server without touching a real filesystem or S3.
type BackendMock struct {
	mock.Mock
}

func (m *BackendMock) Size(p path.Path) (int64, error) {
	args := m.Called(p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *BackendMock) ReadAt(p path.Path, offset int64, length int32) ([]byte, error) {
	args := m.Called(p, offset, length)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *BackendMock) WriteAt(p path.Path, offset int64, data []byte) error {
	return m.Called(p, offset, data).Error(0)
}

func (m *BackendMock) Create(p path.Path) error {
	return m.Called(p).Error(0)
}

func (m *BackendMock) Delete(p path.Path) error {
	return m.Called(p).Error(0)
}

func (m *BackendMock) ForEach(fn func(path.Path) error) error {
	return m.Called(fn).Error(0)
}
