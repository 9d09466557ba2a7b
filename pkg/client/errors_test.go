package client

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestTransportErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want []string
	}{
		{
			name: "status error",
			err: &TransportError{
				Method:     "GET",
				URL:        "http://origin/clips/1",
				StatusCode: 503,
				Class:      ErrorClassServer,
				Message:    "503 Service Unavailable",
			},
			want: []string{"server", "GET", "http://origin/clips/1", "503"},
		},
		{
			name: "wrapped error",
			err: &TransportError{
				Method: "GET",
				URL:    "http://origin/clips/1",
				Class:  ErrorClassNetwork,
				Err:    io.ErrUnexpectedEOF,
			},
			want: []string{"network", "unexpected EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, fragment := range tt.want {
				if !strings.Contains(msg, fragment) {
					t.Errorf("Error() = %q, missing %q", msg, fragment)
				}
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	terr := &TransportError{
		Method: "GET",
		URL:    "http://origin/clips/1",
		Class:  ErrorClassNetwork,
		Err:    io.ErrUnexpectedEOF,
	}

	if !errors.Is(terr, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should see the wrapped cause")
	}

	var got *TransportError
	wrapped := error(terr)
	if !errors.As(wrapped, &got) {
		t.Fatal("errors.As failed to recover *TransportError")
	}
	if got.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want %q", got.Class, ErrorClassNetwork)
	}
}

func TestTransportErrorTimeout(t *testing.T) {
	timeout := &TransportError{Class: ErrorClassTimeout}
	if !timeout.Timeout() {
		t.Error("Timeout() should be true for timeout class")
	}

	network := &TransportError{Class: ErrorClassNetwork}
	if network.Timeout() {
		t.Error("Timeout() should be false for network class")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{403, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{502, ErrorClassServer},
		{503, ErrorClassServer},
		{599, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassTimeout, true},
		{ErrorClassNetwork, true},
		{ErrorClass("unknown"), false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}
