package crawler

import (
	"testing"

	"github.com/chromedp/cdproto/network"
)

func TestDocumentResponseStatus(t *testing.T) {
	tests := []struct {
		name       string
		event      interface{}
		wantStatus int
		wantOK     bool
	}{
		{
			name: "document response at requested url",
			event: &network.EventResponseReceived{
				Type:     network.ResourceTypeDocument,
				Response: &network.Response{URL: "https://docs.example.com/guide", Status: 200},
			},
			wantStatus: 200,
			wantOK:     true,
		},
		{
			// Redirects land the document on a different URL than the one
			// navigated to; the status must still be captured
			name: "document response after redirect",
			event: &network.EventResponseReceived{
				Type:     network.ResourceTypeDocument,
				Response: &network.Response{URL: "https://docs.example.com/guide/", Status: 404},
			},
			wantStatus: 404,
			wantOK:     true,
		},
		{
			name: "subresource response ignored",
			event: &network.EventResponseReceived{
				Type:     network.ResourceTypeStylesheet,
				Response: &network.Response{URL: "https://docs.example.com/site.css", Status: 200},
			},
			wantOK: false,
		},
		{
			name: "document event without response ignored",
			event: &network.EventResponseReceived{
				Type: network.ResourceTypeDocument,
			},
			wantOK: false,
		},
		{
			name:   "unrelated event ignored",
			event:  &network.EventRequestWillBeSent{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := documentResponseStatus(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("documentResponseStatus() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && status != tt.wantStatus {
				t.Errorf("documentResponseStatus() status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}
