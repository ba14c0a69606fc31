package auth

// Known OAuth scopes used by the itinerary backend.
const (
	ScopePlansWrite = "plans:write"
	ScopePlansRead  = "plans:read"
)
