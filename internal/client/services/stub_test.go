package services

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/dmitrijs2005/innerwell/internal/client/client"
)

// stubAPI answers from canned bodies keyed by path. A non-nil hold makes Get
// signal on entered and block until hold is closed.
type stubAPI struct {
	bodies  map[string]any
	entered chan struct{}
	hold    chan struct{}
	posted  []string
}

func (s *stubAPI) fill(path string, out any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(s.bodies[path])
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (s *stubAPI) Get(ctx context.Context, path string, _ url.Values, out any) error {
	if s.hold != nil {
		s.entered <- struct{}{}
		select {
		case <-s.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.fill(path, out)
}

func (s *stubAPI) PostJSON(_ context.Context, path string, _ any, out any) error {
	s.posted = append(s.posted, path)
	return s.fill(path, out)
}

func (s *stubAPI) Delete(context.Context, string) error { return nil }

func (s *stubAPI) PatchMultipart(_ context.Context, path string, _ map[string]string, _ []client.FilePart, out any) error {
	return s.fill(path, out)
}

func (s *stubAPI) OnSessionEnded(func()) {}
