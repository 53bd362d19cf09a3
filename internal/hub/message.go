package hub

// Event names on the dashboard channel.
const (
	EventMarketUpdate  = "market_update"
	EventStatus        = "status"
	EventError         = "error"
	EventRequestUpdate = "request_update"
)

// Status texts sent to clients.
const (
	StatusWaiting    = "Waiting for first data update..."
	StatusUpdating   = "Fetching latest market data..."
	StatusInProgress = "Update already in progress"
	StatusDisabled   = "Manual updates are not available"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Notice is the payload of status and error events.
type Notice struct {
	Message string `json:"message"`
}
