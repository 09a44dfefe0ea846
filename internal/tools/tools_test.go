package tools

import (
	"strings"
	"testing"
	"time"

	"github.com/quincekit/quince/internal/session"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		in     string
		want   Name
		wantOK bool
	}{
		{"calendar_note_query", CalendarNoteQuery, true},
		{"calendar_note_add", CalendarNoteAdd, true},
		{"memory", Memory, true},
		{"text_to_image", TextToImage, true},
		{"internet_search", InternetSearch, true},
		{"", "", false},
		{"Memory", "", false},
		{"delete_everything", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseName(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseName(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
		if got != tt.want {
			t.Errorf("ParseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCatalog_Complete(t *testing.T) {
	catalog := Catalog()
	if len(catalog) != 5 {
		t.Fatalf("catalog has %d tools, want 5", len(catalog))
	}

	byName := make(map[Name]Descriptor, len(catalog))
	for _, d := range catalog {
		if d.Description == "" {
			t.Errorf("tool %s has no description", d.Name)
		}
		if d.Parameters["type"] != "object" {
			t.Errorf("tool %s parameters type = %v, want object", d.Name, d.Parameters["type"])
		}
		byName[d.Name] = d
	}

	for _, name := range []Name{CalendarNoteQuery, CalendarNoteAdd, Memory, TextToImage, InternetSearch} {
		if _, ok := byName[name]; !ok {
			t.Errorf("catalog missing %s", name)
		}
	}
}

func TestCatalog_SearchEmbedsToday(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	for _, d := range Catalog() {
		if d.Name != InternetSearch {
			continue
		}
		props := d.Parameters["properties"].(map[string]any)
		query := props["query"].(map[string]any)
		desc := query["description"].(string)
		if !strings.Contains(desc, today) {
			t.Errorf("search query description %q does not mention today (%s)", desc, today)
		}
		return
	}
	t.Fatal("internet_search not in catalog")
}

func TestSelect_FilterAndOrder(t *testing.T) {
	// Request in reversed order; rendering follows catalog order.
	out := Select([]Name{InternetSearch, Memory, CalendarNoteQuery})
	if len(out) != 3 {
		t.Fatalf("got %d tools, want 3", len(out))
	}

	wantOrder := []string{"calendar_note_query", "memory", "internet_search"}
	for i, entry := range out {
		if entry["type"] != "function" {
			t.Errorf("entry %d type = %v, want function", i, entry["type"])
		}
		fn := entry["function"].(map[string]any)
		if fn["name"] != wantOrder[i] {
			t.Errorf("entry %d name = %v, want %s", i, fn["name"], wantOrder[i])
		}
	}
}

func TestSelect_Empty(t *testing.T) {
	if out := Select(nil); out != nil {
		t.Errorf("Select(nil) = %v, want nil", out)
	}
}

func TestFromOptions(t *testing.T) {
	tests := []struct {
		name string
		opts session.Options
		want []Name
	}{
		{
			name: "all disabled",
			opts: session.Options{},
			want: nil,
		},
		{
			name: "memory only",
			opts: func() session.Options {
				var o session.Options
				o.Memory.Enabled = true
				return o
			}(),
			want: []Name{Memory},
		},
		{
			name: "everything",
			opts: func() session.Options {
				var o session.Options
				o.Calendar.QueryEnabled = true
				o.Calendar.AddEnabled = true
				o.Memory.Enabled = true
				o.Image.Enabled = true
				o.Search.Enabled = true
				return o
			}(),
			want: []Name{CalendarNoteQuery, CalendarNoteAdd, Memory, TextToImage, InternetSearch},
		},
		{
			name: "query without add",
			opts: func() session.Options {
				var o session.Options
				o.Calendar.QueryEnabled = true
				o.Search.Enabled = true
				return o
			}(),
			want: []Name{CalendarNoteQuery, InternetSearch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromOptions(tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
