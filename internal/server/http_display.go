package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo(addr string) {
	fmt.Fprintf(s.Out, "Session API listening on http://%s\n", addr)
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

func (s *Server) displayEndpoints() {
	fmt.Fprintln(s.Out, "Available endpoints:")
	fmt.Fprintln(s.Out, "  GET    /health       - Health check")
	fmt.Fprintln(s.Out, "  GET    /stats        - Session and server statistics")
	fmt.Fprintln(s.Out, "  GET    /queue        - Queue snapshot")
	fmt.Fprintln(s.Out, "  POST   /queue        - Add resume files (multipart field \"resumes\")")
	fmt.Fprintln(s.Out, "  DELETE /queue        - Clear the queue")
	fmt.Fprintln(s.Out, "  DELETE /queue/{id}   - Remove a queued or failed file")
	fmt.Fprintln(s.Out, "  POST   /submit       - Analyze every queued file against a job description")
	fmt.Fprintln(s.Out, "  GET    /results      - Last ranked summary")
	fmt.Fprintln(s.Out, "  GET    /results/{id}/compare - Compare one candidate (?scope=top|all)")
	fmt.Fprintln(s.Out, "  POST   /reset        - Start a new session")
}

func (s *Server) displayAuthInfo() {
	if n := s.keyCount(); n > 0 {
		fmt.Fprintf(s.Out, "API authentication: ENABLED (%d keys configured)\n", n)
		fmt.Fprintln(s.Out, "Include 'X-API-Key: <your-key>' header in requests to session endpoints")
	} else {
		fmt.Fprintln(s.Out, "API authentication: DISABLED (no API keys configured)")
	}
}

func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(s.Out, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(s.Out, "Request size limit: DISABLED")
	}
}

func (s *Server) displayRateLimitInfo() {
	if s.RateLimiter == nil || s.RateLimit == nil {
		fmt.Fprintln(s.Out, "Rate limiting: DISABLED")
		return
	}
	fmt.Fprintf(s.Out, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
		s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	if s.RateLimit.ByAPIKey {
		fmt.Fprintln(s.Out, "  - Per API key rate limiting enabled")
	}
	if s.RateLimit.ByIP {
		fmt.Fprintln(s.Out, "  - Per IP address rate limiting enabled")
	}
}
