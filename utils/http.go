package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls to the identity service.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}
