package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	API *http.Client // upstream APIs such as Gemini
}

func NewClients(apiTimeout time.Duration) *Clients {
	if apiTimeout <= 0 {
		apiTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4

	return &Clients{
		API: &http.Client{Timeout: apiTimeout, Transport: transport},
	}
}
