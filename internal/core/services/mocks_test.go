package services_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
)

type MockBillingLookup struct {
	mock.Mock
}

func (m *MockBillingLookup) GetBillingAccount(ctx context.Context, policyID string) (*domain.BillingAccount, error) {
	args := m.Called(ctx, policyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingAccount), args.Error(1)
}

type MockProductConfigLookup struct {
	mock.Mock
}

func (m *MockProductConfigLookup) GetConfiguration(ctx context.Context, productKey string) (*domain.ProductMain, *domain.ProductAccounting, error) {
	args := m.Called(ctx, productKey)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ProductMain), args.Get(1).(*domain.ProductAccounting), args.Error(2)
}

func (m *MockProductConfigLookup) GetProductList(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockActivityLogSink struct {
	mock.Mock
}

func (m *MockActivityLogSink) SendActivityLog(ctx context.Context, entry domain.ActivityLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) SendServiceEvent(ctx context.Context, detail any, detailType string) error {
	args := m.Called(ctx, detail, detailType)
	return args.Error(0)
}

type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Upload(ctx context.Context, data []byte, path, contentType string) error {
	args := m.Called(ctx, data, path, contentType)
	return args.Error(0)
}

func (m *MockBlobStorage) GetDocument(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockDocumentAPI struct {
	mock.Mock
}

func (m *MockDocumentAPI) ListDocuments(ctx context.Context, transactionID string) ([]domain.ProviderDocument, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProviderDocument), args.Error(1)
}

func (m *MockDocumentAPI) DownloadDocument(ctx context.Context, doc domain.ProviderDocument) ([]byte, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// fakeTransport is an in-memory file drop shared by every connection it hands out.
type fakeTransport struct {
	mu       sync.Mutex
	files    map[string][]byte
	failPut  string
	dials    int
	closures int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{files: map[string][]byte{}}
}

func (f *fakeTransport) Connect(context.Context) (portssvc.RemoteTransport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	return f, nil
}

func (f *fakeTransport) List(_ context.Context, dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for p := range f.files {
		if rest, ok := strings.CutPrefix(p, prefix); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeTransport) Get(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *fakeTransport) Put(_ context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != "" && strings.Contains(path, f.failPut) {
		return errors.New("connection reset")
	}
	f.files[path] = data
	return nil
}

func (f *fakeTransport) Rename(_ context.Context, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[from]
	if !ok {
		return errors.New("no such file")
	}
	delete(f.files, from)
	f.files[to] = data
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closures++
	return nil
}

func (f *fakeTransport) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.files))
	for p := range f.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
