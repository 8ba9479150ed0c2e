package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"alfredoptarigan/readysetrole/internal/models"
)

type chatCall struct {
	Model   string
	History []models.Turn
	Turn    models.Turn
}

type fakeChatModel struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []chatCall
}

func (f *fakeChatModel) Generate(_ context.Context, model string, history []models.Turn, turn models.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, chatCall{Model: model, History: history, Turn: turn})

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(f.replies) == 0 {
		return "ok", nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeChatModel) lastCall() chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeChatModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFileStore struct {
	mu        sync.Mutex
	next      int
	files     map[string]models.RemoteFile
	activeAt  int // Get calls a file needs before it reports ACTIVE
	gets      map[string]int
	deleted   []string
	uploadErr map[string]error
	getErr    error
	deleteErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{
		files:     map[string]models.RemoteFile{},
		gets:      map[string]int{},
		uploadErr: map[string]error{},
	}
}

func (s *fakeFileStore) Upload(_ context.Context, displayName, mimeType string, data []byte) (*models.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.uploadErr[displayName]; err != nil {
		return nil, err
	}

	s.next++
	name := fmt.Sprintf("files/%d", s.next)
	state := models.FileStateActive
	if s.activeAt > 0 {
		state = models.FileStateProcessing
	}
	f := models.RemoteFile{
		Name:      name,
		URI:       "https://files.example/" + name,
		MIMEType:  mimeType,
		SizeBytes: int64(len(data)),
		State:     state,
	}
	s.files[name] = f
	return &f, nil
}

func (s *fakeFileStore) Get(_ context.Context, name string) (*models.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	f, ok := s.files[name]
	if !ok {
		return nil, errors.New("not found")
	}
	s.gets[name]++
	if s.activeAt > 0 && s.gets[name] >= s.activeAt && f.State == models.FileStateProcessing {
		f.State = models.FileStateActive
		s.files[name] = f
	}
	return &f, nil
}

func (s *fakeFileStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = append(s.deleted, name)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.files, name)
	return nil
}

func (s *fakeFileStore) List(_ context.Context) ([]models.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RemoteFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeFileStore) put(f models.RemoteFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.Name] = f
}

func (s *fakeFileStore) deletedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func (s *fakeFileStore) getCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[name]
}
