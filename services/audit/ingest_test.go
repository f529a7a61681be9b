package audit

import (
	"reflect"
	"testing"
)

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous map[string]any
		current  map[string]any
		want     map[string]map[string]any
	}{
		{
			name:     "no changes",
			previous: map[string]any{"hostname": "ws-1"},
			current:  map[string]any{"hostname": "ws-1"},
			want:     map[string]map[string]any{},
		},
		{
			name:     "changed value",
			previous: map[string]any{"hostname": "ws-1"},
			current:  map[string]any{"hostname": "ws-2"},
			want: map[string]map[string]any{
				"hostname": {"old": "ws-1", "new": "ws-2"},
			},
		},
		{
			name:    "added key",
			current: map[string]any{"created": true},
			want: map[string]map[string]any{
				"created": {"old": nil, "new": true},
			},
		},
		{
			name:     "removed key",
			previous: map[string]any{"created": true},
			current:  map[string]any{},
			want: map[string]map[string]any{
				"created": {"old": true, "new": nil},
			},
		},
		{
			name: "nil maps",
			want: map[string]map[string]any{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := computeDiff(tc.previous, tc.current); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("computeDiff = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestNewIngestorValidation(t *testing.T) {
	if _, err := NewIngestor(nil, nil); err == nil {
		t.Fatal("expected error for nil dependencies")
	}
}
