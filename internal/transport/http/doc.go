// Package http implements the REST handlers of the portfolio graph service.
// Handlers stay thin: they parse and validate the request, call the service
// layer and render the result.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → GraphService
//	                                              ↓
//	HTTP Response ← Handler ← Snapshot ←─────────┘
//
// # Error Handling
//
// Service errors are mapped to APIError values and rendered as RFC 7807
// problem details by the shared ErrorHandler:
//
//	{
//	    "type": "/errors/client/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "client \"zeta\" not found",
//	    "instance": "/api/client/zeta",
//	    "available": ["alpha-capital", "beta-partners"],
//	    "more_available": false
//	}
//
// Load failures keep their own problem types so that a missing file and a
// malformed table can be told apart by clients.
//
// # Testing
//
// Handlers are tested with httptest against mocked services.
package http
