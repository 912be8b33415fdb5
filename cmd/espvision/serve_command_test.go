package main

import (
	"testing"

	"github.com/yoriiioff/espvision/internal/jobs"
	"github.com/yoriiioff/espvision/internal/pipeline"
)

func TestTrayStatus(t *testing.T) {
	tests := []struct {
		name   string
		event  jobs.Event
		want   string
		wantOK bool
	}{
		{
			name: "progress with total",
			event: jobs.Event{
				Type:     jobs.EventProgress,
				Progress: &pipeline.Progress{Frame: 30, Total: 120},
			},
			want:   "processing 25%",
			wantOK: true,
		},
		{
			name:   "progress without total",
			event:  jobs.Event{Type: jobs.EventProgress},
			want:   "processing",
			wantOK: true,
		},
		{
			name:   "done",
			event:  jobs.Event{Type: jobs.EventDone, Output: "/videos/out.mp4"},
			want:   "done: out.mp4",
			wantOK: true,
		},
		{
			name:   "failed",
			event:  jobs.Event{Type: jobs.EventFailed, Error: "open input: no such file"},
			want:   "failed: open input: no such file",
			wantOK: true,
		},
		{
			name:   "log events leave status alone",
			event:  jobs.Event{Type: jobs.EventLog, Line: "merging audio"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := trayStatus(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}
