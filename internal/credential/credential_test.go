package credential

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"video-parser/pkg/models"
)

// MockStore is an in-memory Store
type MockStore struct {
	mu      sync.Mutex
	values  map[string]string
	saveErr error
	loadErr error
	saves   int
}

func NewMockStore() *MockStore {
	return &MockStore{values: make(map[string]string)}
}

func (m *MockStore) SaveCredential(source, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.values[source] = value
	return nil
}

func (m *MockStore) LoadCredential(source string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", m.loadErr
	}
	return m.values[source], nil
}

func TestProvider(t *testing.T) {
	p := NewProvider("")
	if p.Get() != "" {
		t.Error("Expected an empty provider")
	}

	if err := p.Set("a=1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.Get() != "a=1" {
		t.Errorf("Expected a=1, got %q", p.Get())
	}

	if err := p.Set(""); !errors.Is(err, models.ErrEmptyCredential) {
		t.Errorf("Expected ErrEmptyCredential, got %v", err)
	}
	if p.Get() != "a=1" {
		t.Errorf("Expected credential to be kept after a rejected update, got %q", p.Get())
	}

	if err := p.Set("b=2"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.Get() != "b=2" {
		t.Errorf("Expected last write to win, got %q", p.Get())
	}
}

func TestProvider_ZeroValue(t *testing.T) {
	var p Provider
	if p.Get() != "" {
		t.Errorf("Expected empty credential, got %q", p.Get())
	}
}

func TestProvider_Concurrent(t *testing.T) {
	p := NewProvider("initial")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Set("writer")
		}()
		go func() {
			defer wg.Done()
			if v := p.Get(); v != "initial" && v != "writer" {
				t.Errorf("Unexpected value %q", v)
			}
		}()
	}
	wg.Wait()

	if p.Get() != "writer" {
		t.Errorf("Expected writer, got %q", p.Get())
	}
}

func TestPersistent(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("initial value when nothing stored", func(t *testing.T) {
		p, err := NewPersistent(NewMockStore(), models.SourceDouyin, "from-config", logger)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.Get() != "from-config" {
			t.Errorf("Expected from-config, got %q", p.Get())
		}
	})

	t.Run("stored value wins", func(t *testing.T) {
		store := NewMockStore()
		store.values["douyin"] = "from-store"

		p, err := NewPersistent(store, models.SourceDouyin, "from-config", logger)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.Get() != "from-store" {
			t.Errorf("Expected from-store, got %q", p.Get())
		}
	})

	t.Run("load failure", func(t *testing.T) {
		store := NewMockStore()
		store.loadErr = errors.New("disk gone")

		if _, err := NewPersistent(store, models.SourceDouyin, "", logger); err == nil {
			t.Error("Expected an error")
		}
	})

	t.Run("set writes through", func(t *testing.T) {
		store := NewMockStore()
		p, _ := NewPersistent(store, models.SourceDouyin, "", logger)

		if err := p.Set("new"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p.Get() != "new" || store.values["douyin"] != "new" {
			t.Errorf("Expected new in memory and store, got %q / %q", p.Get(), store.values["douyin"])
		}
	})

	t.Run("empty value rejected without a write", func(t *testing.T) {
		store := NewMockStore()
		p, _ := NewPersistent(store, models.SourceDouyin, "kept", logger)

		if err := p.Set(""); !errors.Is(err, models.ErrEmptyCredential) {
			t.Errorf("Expected ErrEmptyCredential, got %v", err)
		}
		if store.saves != 0 {
			t.Errorf("Expected no store writes, got %d", store.saves)
		}
		if p.Get() != "kept" {
			t.Errorf("Expected kept, got %q", p.Get())
		}
	})

	t.Run("save failure keeps current value", func(t *testing.T) {
		store := NewMockStore()
		p, _ := NewPersistent(store, models.SourceDouyin, "kept", logger)
		store.saveErr = errors.New("read-only")

		if err := p.Set("new"); err == nil {
			t.Error("Expected an error")
		}
		if p.Get() != "kept" {
			t.Errorf("Expected kept, got %q", p.Get())
		}
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"single", "sessionid=abc", "sessionid=abc", false},
		{"spacing", "  a=1 ;b=2;  ", "a=1; b=2", false},
		{"duplicates keep last", "a=1; b=2; a=3", "a=3; b=2", false},
		{"value with equals", "token=x=y", "token=x=y", false},
		{"malformed dropped", "a=1; garbage; =nameless", "a=1", false},
		{"empty", "", "", true},
		{"only garbage", "garbage", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		return path
	}

	raw := write("cookie.txt", "sessionid=abc; ttwid=xyz\n")
	got, err := LoadFile(raw, models.SourceDouyin)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "sessionid=abc; ttwid=xyz" {
		t.Errorf("Unexpected credential %q", got)
	}

	exported := write("cookies.json", `[
		{"name": "sessionid", "value": "abc", "domain": ".douyin.com"},
		{"name": "ttwid", "value": "xyz", "domain": "www.iesdouyin.com"},
		{"name": "tracker", "value": "no", "domain": ".example.com"},
		{"name": "", "value": "nameless", "domain": ".douyin.com"}
	]`)
	got, err = LoadFile(exported, models.SourceDouyin)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "sessionid=abc; ttwid=xyz" {
		t.Errorf("Unexpected credential %q", got)
	}

	foreign := write("foreign.json", `[{"name": "a", "value": "1", "domain": "example.com"}]`)
	if _, err := LoadFile(foreign, models.SourceDouyin); err == nil {
		t.Error("Expected an error when no cookie matches")
	}

	broken := write("broken.json", `[{"name": `)
	if _, err := LoadFile(broken, models.SourceDouyin); err == nil {
		t.Error("Expected an error for malformed JSON")
	}

	if _, err := LoadFile(filepath.Join(dir, "missing"), models.SourceDouyin); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
