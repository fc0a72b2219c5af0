package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shaneholloman/automaker/internal/domain"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ExecuteQuery(ctx context.Context, opts ExecuteOptions) *domain.MessageStream {
	return ErrorStream(domain.ErrorKindExecution, "not implemented")
}

func (f *fakeProvider) DetectInstallation(ctx context.Context) InstallationStatus {
	return InstallationStatus{Method: "none"}
}

func (f *fakeProvider) AvailableModels() []ModelDefinition { return nil }

func (f *fakeProvider) SupportsFeature(feature string) bool { return false }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "cursor"})
	r.Register(&fakeProvider{name: "codex"})

	p, err := r.Get("codex")
	if err != nil {
		t.Fatalf("Get(codex) error: %v", err)
	}
	if p.Name() != "codex" {
		t.Errorf("Get(codex).Name() = %q", p.Name())
	}

	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Get(nope) error = %v, want ErrUnknownProvider", err)
	}

	want := []string{"codex", "cursor"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestDefaultModel(t *testing.T) {
	models := []ModelDefinition{
		{ID: "small"},
		{ID: "large", IsDefault: true},
	}
	m, ok := DefaultModel(models)
	if !ok || m.ID != "large" {
		t.Errorf("DefaultModel = %v, %v", m, ok)
	}

	m, ok = DefaultModel(models[:1])
	if !ok || m.ID != "small" {
		t.Errorf("DefaultModel without marked default = %v, %v", m, ok)
	}

	if _, ok := DefaultModel(nil); ok {
		t.Error("DefaultModel(nil) reported ok")
	}
}
