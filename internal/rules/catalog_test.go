package rules

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sentinel/internal/domain"
)

type fakeSource struct {
	documents []Document
	err       error
}

func (s *fakeSource) Read(_ context.Context) ([]Document, error) {
	return s.documents, s.err
}

func TestCatalogReloadPartialSuccess(t *testing.T) {
	t.Parallel()

	source := &fakeSource{documents: []Document{
		{Name: "good.yaml", Body: []byte("id: block-ssh\ndescription: ssh brute force\nenabled: true\nseverity: high\n")},
		{Name: "bad.yaml", Body: []byte(":\n\t- broken")},
	}}
	catalog := NewCatalog(source, nil)

	if err := catalog.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if catalog.Size() != 1 {
		t.Fatalf("expected 1 rule, got %d", catalog.Size())
	}
	loaded := catalog.List()[0]
	if loaded.ID != "block-ssh" || !loaded.Enabled || loaded.Severity != "high" {
		t.Fatalf("unexpected rule %+v", loaded)
	}
}

func TestCatalogReloadDropsRulesWithoutID(t *testing.T) {
	t.Parallel()

	source := &fakeSource{documents: []Document{
		{Name: "mixed.yaml", Body: []byte("- id: keep-me\n  enabled: true\n- description: no id here\n  enabled: true\n")},
	}}
	catalog := NewCatalog(source, nil)

	if err := catalog.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if catalog.Size() != 1 {
		t.Fatalf("expected 1 rule, got %d", catalog.Size())
	}
	if catalog.List()[0].ID != "keep-me" {
		t.Fatalf("unexpected rule id %q", catalog.List()[0].ID)
	}
}

func TestCatalogReloadTotalFailureKeepsLastGood(t *testing.T) {
	t.Parallel()

	source := &fakeSource{documents: []Document{
		{Name: "rule.yaml", Body: []byte("id: stays\nenabled: true\n")},
	}}
	catalog := NewCatalog(source, nil)
	if err := catalog.Reload(context.Background()); err != nil {
		t.Fatalf("first reload: %v", err)
	}

	source.err = errors.New("filesystem gone")
	err := catalog.Reload(context.Background())
	if err == nil {
		t.Fatalf("expected load error")
	}
	var loadErr LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %T", err)
	}
	if catalog.Size() != 1 || catalog.List()[0].ID != "stays" {
		t.Fatalf("last-good snapshot was lost")
	}
}

func TestCatalogStartsEmpty(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog(&fakeSource{}, nil)
	if catalog.Size() != 0 {
		t.Fatalf("expected empty catalog before first reload")
	}
	if got := catalog.List(); len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}
}

type alternatingSource struct {
	mu    sync.Mutex
	flip  bool
	pair  []Document
	solo  []Document
}

func (s *alternatingSource) Read(_ context.Context) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flip = !s.flip
	if s.flip {
		return s.pair, nil
	}
	return s.solo, nil
}

func TestCatalogConcurrentReloadYieldsCompleteSnapshots(t *testing.T) {
	t.Parallel()

	source := &alternatingSource{
		pair: []Document{
			{Name: "a.yaml", Body: []byte("- id: pair-1\n- id: pair-2\n")},
		},
		solo: []Document{
			{Name: "b.yaml", Body: []byte("id: solo-1\n")},
		},
	}
	catalog := NewCatalog(source, nil)
	if err := catalog.Reload(context.Background()); err != nil {
		t.Fatalf("seed reload: %v", err)
	}

	done := make(chan struct{})
	var reloader sync.WaitGroup
	reloader.Add(1)
	go func() {
		defer reloader.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := catalog.Reload(context.Background()); err != nil {
				t.Errorf("reload: %v", err)
				return
			}
		}
	}()

	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 500; j++ {
				snapshot := catalog.List()
				switch len(snapshot) {
				case 1:
					if snapshot[0].ID != "solo-1" {
						t.Errorf("torn single snapshot: %+v", snapshot)
						return
					}
				case 2:
					if snapshot[0].ID != "pair-1" || snapshot[1].ID != "pair-2" {
						t.Errorf("torn pair snapshot: %+v", snapshot)
						return
					}
				default:
					t.Errorf("snapshot of unexpected size %d", len(snapshot))
					return
				}
			}
		}()
	}

	readers.Wait()
	close(done)
	reloader.Wait()
}

func TestParseDocumentListAndSingle(t *testing.T) {
	t.Parallel()

	list, err := parseDocument([]byte("- id: a\n- id: b\n"))
	if err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected list %+v", list)
	}

	single, err := parseDocument([]byte("id: only\nactions:\n  - type: log\n    name: record\n"))
	if err != nil {
		t.Fatalf("parse single: %v", err)
	}
	if len(single) != 1 || single[0].ID != "only" {
		t.Fatalf("unexpected single %+v", single)
	}
	if len(single[0].Actions) != 1 || single[0].Actions[0].Kind != ActionKindLog {
		t.Fatalf("unexpected actions %+v", single[0].Actions)
	}
}

func TestDefinitionEscalates(t *testing.T) {
	t.Parallel()

	for severity, want := range map[domain.Severity]bool{
		domain.SeverityLow:      false,
		domain.SeverityMedium:   false,
		domain.SeverityHigh:     true,
		domain.SeverityCritical: true,
	} {
		rule := Definition{ID: "r", Severity: severity}
		if rule.Escalates() != want {
			t.Fatalf("severity %q: expected escalates=%v", severity, want)
		}
	}
}
