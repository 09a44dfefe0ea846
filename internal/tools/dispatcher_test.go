package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/quincekit/quince/internal/imagegen"
	"github.com/quincekit/quince/internal/session"
)

type fakeSearcher struct {
	items []session.SearchItem
	err   error

	gotQuery string
	gotCount int
}

func (f *fakeSearcher) Run(_ context.Context, query string, count int) ([]session.SearchItem, error) {
	f.gotQuery = query
	f.gotCount = count
	return f.items, f.err
}

type fakeGenerator struct {
	images []imagegen.Image
	err    error

	gotReq imagegen.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req imagegen.Request) ([]imagegen.Image, error) {
	f.gotReq = req
	return f.images, f.err
}

type fakeSaver struct {
	err   error
	saved []string
}

func (f *fakeSaver) SaveBase64(b64, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	saved := "/data/images/" + name
	f.saved = append(f.saved, saved)
	return saved, nil
}

func TestExecute_CalendarPassthrough(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)

	query := `{"startTime":"2025-03-01","endTime":"2025-03-07"}`
	got, err := d.Execute(context.Background(), CalendarNoteQuery, query, session.Options{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != query {
		t.Errorf("query result = %q, want arguments back", got)
	}

	add := `{"time":"2025-03-02","content":"dentist"}`
	got, err = d.Execute(context.Background(), CalendarNoteAdd, add, session.Options{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got != add {
		t.Errorf("add result = %q, want arguments back", got)
	}
}

func TestExecute_MemoryReturnsContent(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)

	got, err := d.Execute(context.Background(), Memory, `{"content":"likes green tea"}`, session.Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "likes green tea" {
		t.Errorf("result = %q, want the content string", got)
	}
}

func TestExecute_MalformedArguments(t *testing.T) {
	d := NewDispatcher(&fakeSearcher{}, &fakeGenerator{}, &fakeSaver{}, nil)

	for _, name := range []Name{CalendarNoteQuery, CalendarNoteAdd, Memory, TextToImage, InternetSearch} {
		_, err := d.Execute(context.Background(), name, `{"broken":`, session.Options{})
		if !errors.Is(err, ErrMalformedArguments) {
			t.Errorf("%s: err = %v, want ErrMalformedArguments", name, err)
		}
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)

	_, err := d.Execute(context.Background(), Name("teleport"), `{}`, session.Options{})
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if errors.Is(err, ErrMalformedArguments) {
		t.Error("unknown tool should not be reported as malformed arguments")
	}
}

func TestExecute_TextToImage(t *testing.T) {
	gen := &fakeGenerator{images: []imagegen.Image{{B64: "aGk="}, {B64: "eW8="}}}
	saver := &fakeSaver{}
	d := NewDispatcher(nil, gen, saver, nil)

	var opts session.Options
	opts.Image.Model = "dall-e-3"
	opts.Image.N = 2
	opts.Image.Size = "1024x1024"

	result, err := d.Execute(context.Background(), TextToImage, `{"description":"a red fox"}`, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gen.gotReq.Prompt != "a red fox" {
		t.Errorf("prompt = %q, want description", gen.gotReq.Prompt)
	}
	if gen.gotReq.Model != "dall-e-3" || gen.gotReq.N != 2 {
		t.Errorf("generation request %+v did not carry session options", gen.gotReq)
	}

	var files []session.File
	if err := json.Unmarshal([]byte(result), &files); err != nil {
		t.Fatalf("result is not a file list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	for i, f := range files {
		if f.Extname != ".png" {
			t.Errorf("file %d extname = %q, want .png", i, f.Extname)
		}
		if !strings.HasSuffix(f.Name, ".png") {
			t.Errorf("file %d name = %q, want .png suffix", i, f.Name)
		}
		if f.SaveName != saver.saved[i] {
			t.Errorf("file %d save name = %q, want %q", i, f.SaveName, saver.saved[i])
		}
	}
}

func TestExecute_TextToImage_SaverError(t *testing.T) {
	gen := &fakeGenerator{images: []imagegen.Image{{B64: "aGk="}}}
	d := NewDispatcher(nil, gen, &fakeSaver{err: errors.New("disk full")}, nil)

	_, err := d.Execute(context.Background(), TextToImage, `{"description":"x"}`, session.Options{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want save failure surfaced", err)
	}
}

func TestExecute_TextToImage_NotConfigured(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)

	_, err := d.Execute(context.Background(), TextToImage, `{"description":"x"}`, session.Options{})
	if err == nil {
		t.Fatal("expected error with no generator configured")
	}
}

func TestExecute_InternetSearch(t *testing.T) {
	searcher := &fakeSearcher{items: []session.SearchItem{
		{Title: "Go 1.25 released", Link: "https://example.com/go", Snippet: "The Go team announced..."},
	}}
	d := NewDispatcher(searcher, nil, nil, nil)

	var opts session.Options
	opts.Search.Count = 3

	result, err := d.Execute(context.Background(), InternetSearch, `{"query":"go release"}`, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if searcher.gotQuery != "go release" {
		t.Errorf("query = %q, want go release", searcher.gotQuery)
	}
	if searcher.gotCount != 3 {
		t.Errorf("count = %d, want 3", searcher.gotCount)
	}

	var items []session.SearchItem
	if err := json.Unmarshal([]byte(result), &items); err != nil {
		t.Fatalf("result is not an item list: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Go 1.25 released" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestExecute_InternetSearch_EmptyIsArray(t *testing.T) {
	d := NewDispatcher(&fakeSearcher{}, nil, nil, nil)

	result, err := d.Execute(context.Background(), InternetSearch, `{"query":"anything"}`, session.Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// The provider expects a JSON array even when nothing was found.
	if result != "[]" {
		t.Errorf("result = %q, want []", result)
	}
}

func TestExecute_InternetSearch_Error(t *testing.T) {
	d := NewDispatcher(&fakeSearcher{err: errors.New("network down")}, nil, nil, nil)

	_, err := d.Execute(context.Background(), InternetSearch, `{"query":"x"}`, session.Options{})
	if err == nil || !strings.Contains(err.Error(), "network down") {
		t.Errorf("err = %v, want search failure surfaced", err)
	}
}
